package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepo "github.com/devmarvs/backoffice/internal/audit/repository"
	auditservice "github.com/devmarvs/backoffice/internal/audit/service"
	clientdomain "github.com/devmarvs/backoffice/internal/client/domain"
	clientrepo "github.com/devmarvs/backoffice/internal/client/repository"
	clientservice "github.com/devmarvs/backoffice/internal/client/service"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/config"
	followuprepo "github.com/devmarvs/backoffice/internal/followup/repository"
	followupservice "github.com/devmarvs/backoffice/internal/followup/service"
	invoicerepo "github.com/devmarvs/backoffice/internal/invoice/repository"
	invoiceservice "github.com/devmarvs/backoffice/internal/invoice/service"
	packrepo "github.com/devmarvs/backoffice/internal/pack/repository"
	packservice "github.com/devmarvs/backoffice/internal/pack/service"
	"github.com/devmarvs/backoffice/internal/providers/email"
	"github.com/devmarvs/backoffice/internal/providers/pdf"
	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	settingsrepo "github.com/devmarvs/backoffice/internal/settings/repository"
	settingsservice "github.com/devmarvs/backoffice/internal/settings/service"
	templaterepo "github.com/devmarvs/backoffice/internal/template/repository"
	templateservice "github.com/devmarvs/backoffice/internal/template/service"
	"github.com/devmarvs/backoffice/internal/workevent/domain"
	"github.com/devmarvs/backoffice/internal/workevent/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type autopilotFixture struct {
	svc      domain.Service
	settings settingsdomain.Service
	clients  clientdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
}

func setupWorkEventService(t *testing.T) *autopilotFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareAutopilotSchema(t, db)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fc := clock.NewFakeClock(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	holder := config.NewStaticBillingDefaultsHolder(config.DefaultBillingDefaults())

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: auditrepo.Provide()})
	clients := clientservice.NewService(clientservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: clientrepo.Provide()})
	settings := settingsservice.NewService(settingsservice.Params{DB: db, Log: log, Clock: fc, Repo: settingsrepo.Provide(), Defaults: holder})
	templates := templateservice.NewService(templateservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: templaterepo.Provide()})
	packs := packservice.NewService(packservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: packrepo.Provide(), Audit: audit})
	followUps := followupservice.NewService(followupservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: followuprepo.Provide(), Audit: audit})
	invoices := invoiceservice.NewService(invoiceservice.Params{
		Config: config.Config{AppName: "backoffice"},
		DB:     db, Log: log, GenID: node, Clock: fc,
		Repo: invoicerepo.Provide(), Clients: clients, Audit: audit,
		Email: &email.NoOpProvider{}, PDF: &pdf.NoOpProvider{},
	})

	autopilot := NewAutopilot(log, packs, invoices, followUps, templates)
	svc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: fc,
		Repo: repository.Provide(), Clients: clients, Settings: settings, Autopilot: autopilot,
	})
	return &autopilotFixture{svc: svc, settings: settings, clients: clients, db: db, node: node}
}

func prepareAutopilotSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE clients (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			email TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE user_settings (
			user_id BIGINT PRIMARY KEY,
			default_rate_cents BIGINT,
			default_currency TEXT,
			follow_up_days INT,
			invoice_reminder_days INT,
			last_reminder_run_at DATETIME,
			last_reminder_created INT,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE work_events (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			start_at DATETIME NOT NULL,
			duration_minutes INT NOT NULL DEFAULT 0,
			billable BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT,
			source_type TEXT,
			source_id BIGINT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE packages (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			total_sessions INT NOT NULL,
			used_sessions INT NOT NULL DEFAULT 0,
			price_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE invoice_drafts (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			period_start DATETIME,
			period_end DATETIME,
			amount_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE invoice_lines (
			id BIGINT PRIMARY KEY,
			invoice_draft_id BIGINT NOT NULL,
			work_event_id BIGINT,
			description TEXT NOT NULL,
			quantity TEXT NOT NULL,
			unit_price_cents BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE follow_ups (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			due_at DATETIME NOT NULL,
			suggested_message TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			source_type TEXT,
			source_id BIGINT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_follow_ups_open_source
			ON follow_ups (user_id, source_type, source_id)
			WHERE status = 'open' AND source_type IS NOT NULL`,
		`CREATE TABLE message_templates (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			subject TEXT,
			body TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE audit_logs (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id BIGINT,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
}

func (f *autopilotFixture) seedUserWithRate(t *testing.T, rateCents int64) snowflake.ID {
	t.Helper()
	userID := f.node.Generate()
	if _, err := f.settings.Update(context.Background(), userID, settingsdomain.UpdateSettingsRequest{
		DefaultRateCents: &rateCents,
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	return userID
}

func (f *autopilotFixture) seedClient(t *testing.T, userID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	client, err := f.clients.Create(context.Background(), userID, clientdomain.CreateClientRequest{Name: name})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return client.ID
}

func TestLogBillableSessionRunsAllThreeRules(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.seedUserWithRate(t, 6000)
	clientID := f.seedClient(t, userID, "Ana")

	if err := f.db.Exec(
		`INSERT INTO packages (id, user_id, client_id, title, total_sessions, used_sessions, price_cents, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.node.Generate(), userID, clientID, "Ten pack", 10, 2, 50000, "EUR",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	).Error; err != nil {
		t.Fatalf("seed package: %v", err)
	}

	result, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeSession,
		StartAt:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 90,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	draft := result.Autopilot.InvoiceDraft
	if draft == nil {
		t.Fatalf("no invoice draft")
	}
	if draft.AmountCents != 9000 {
		t.Fatalf("amount = %d, want 9000", draft.AmountCents)
	}
	if draft.Currency != "EUR" {
		t.Fatalf("currency = %q", draft.Currency)
	}

	line := result.Autopilot.InvoiceLine
	if line == nil {
		t.Fatalf("no invoice line")
	}
	if line.Quantity != "1.50" {
		t.Fatalf("quantity = %q, want 1.50", line.Quantity)
	}
	if line.Description != "Session (1h 30m)" {
		t.Fatalf("description = %q", line.Description)
	}
	if line.UnitPriceCents != 6000 {
		t.Fatalf("unit price = %d", line.UnitPriceCents)
	}

	pkg := result.Autopilot.Package
	if pkg == nil {
		t.Fatalf("no package use")
	}
	if pkg.RemainingSessions != 7 {
		t.Fatalf("remaining = %d, want 7", pkg.RemainingSessions)
	}

	fu := result.Autopilot.FollowUp
	if fu == nil {
		t.Fatalf("no follow-up")
	}
	want := time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC)
	if !fu.DueAt.Equal(want) {
		t.Fatalf("due = %v, want %v", fu.DueAt, want)
	}
	if fu.SuggestedMessage != "Follow up with Ana about your Jan 15 session." {
		t.Fatalf("message = %q", fu.SuggestedMessage)
	}
}

func TestLogNonBillableSessionSkipsInvoiceOnly(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.seedUserWithRate(t, 6000)
	clientID := f.seedClient(t, userID, "Ana")

	billable := false
	result, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeSession,
		StartAt:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Billable:        &billable,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if result.Autopilot.InvoiceDraft != nil {
		t.Fatalf("unexpected invoice draft")
	}
	if result.Autopilot.FollowUp == nil {
		t.Fatalf("follow-up missing")
	}
}

func TestLogCarriesSourceOrigin(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.seedUserWithRate(t, 6000)
	clientID := f.seedClient(t, userID, "Ana")

	sourceType := "calendar_event"
	sourceID := f.node.Generate()
	result, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeSession,
		StartAt:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		SourceType:      &sourceType,
		SourceID:        &sourceID,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if result.WorkEvent.SourceType == nil || *result.WorkEvent.SourceType != "calendar_event" {
		t.Fatalf("source type = %v", result.WorkEvent.SourceType)
	}
	if result.WorkEvent.SourceID == nil || *result.WorkEvent.SourceID != sourceID {
		t.Fatalf("source id = %v", result.WorkEvent.SourceID)
	}

	events, err := f.svc.List(context.Background(), userID, domain.ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d", len(events))
	}
	if events[0].SourceType == nil || *events[0].SourceType != "calendar_event" {
		t.Fatalf("stored source type = %v", events[0].SourceType)
	}
	if events[0].SourceID == nil || *events[0].SourceID != sourceID {
		t.Fatalf("stored source id = %v", events[0].SourceID)
	}

	// A blank source type is treated as absent.
	blank := "  "
	result, err = f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeSession,
		StartAt:         time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		SourceType:      &blank,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if result.WorkEvent.SourceType != nil {
		t.Fatalf("blank source type kept: %v", *result.WorkEvent.SourceType)
	}
}

func TestLogAdminEventHasNoSideEffects(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.seedUserWithRate(t, 6000)
	clientID := f.seedClient(t, userID, "Ana")

	result, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeAdmin,
		StartAt:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	ap := result.Autopilot
	if ap.InvoiceDraft != nil || ap.Package != nil || ap.FollowUp != nil {
		t.Fatalf("admin event produced side effects: %+v", ap)
	}
}

func TestLogSessionWithFollowUpDisabled(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.seedUserWithRate(t, 6000)
	clientID := f.seedClient(t, userID, "Ana")

	zero := 0
	if _, err := f.settings.Update(context.Background(), userID, settingsdomain.UpdateSettingsRequest{
		FollowUpDays: &zero,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	result, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeSession,
		StartAt:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if result.Autopilot.FollowUp != nil {
		t.Fatalf("follow-up should be disabled")
	}
	if result.Autopilot.InvoiceDraft == nil {
		t.Fatalf("invoice draft missing")
	}
}

func TestLogWithoutRateProducesZeroAmountDraft(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.node.Generate()
	clientID := f.seedClient(t, userID, "Ana")

	result, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID:        clientID,
		Type:            domain.TypeSession,
		StartAt:         time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	draft := result.Autopilot.InvoiceDraft
	if draft == nil {
		t.Fatalf("invoice draft missing")
	}
	if draft.AmountCents != 0 {
		t.Fatalf("amount = %d, want 0", draft.AmountCents)
	}
	if result.Autopilot.InvoiceLine.Quantity != "0.75" {
		t.Fatalf("quantity = %q, want 0.75", result.Autopilot.InvoiceLine.Quantity)
	}
}

func TestLogRejectsBadInput(t *testing.T) {
	f := setupWorkEventService(t)
	userID := f.node.Generate()
	clientID := f.seedClient(t, userID, "Ana")
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	if _, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID: clientID, Type: "meeting", StartAt: start, DurationMinutes: 60,
	}); err != domain.ErrInvalidType {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}
	if _, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID: clientID, Type: domain.TypeSession, StartAt: start, DurationMinutes: 0,
	}); err != domain.ErrInvalidDuration {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
	bad := "EURO"
	if _, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID: clientID, Type: domain.TypeSession, StartAt: start, DurationMinutes: 60, Currency: &bad,
	}); err != domain.ErrInvalidCurrency {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}
	negative := int64(-1)
	if _, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID: clientID, Type: domain.TypeSession, StartAt: start, DurationMinutes: 60, RateCents: &negative,
	}); err != domain.ErrInvalidRate {
		t.Fatalf("err = %v, want ErrInvalidRate", err)
	}
	if _, err := f.svc.Log(context.Background(), userID, domain.LogRequest{
		ClientID: f.node.Generate(), Type: domain.TypeSession, StartAt: start, DurationMinutes: 60,
	}); err != clientdomain.ErrNotFound {
		t.Fatalf("err = %v, want client ErrNotFound", err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		0:   "0m",
		30:  "30m",
		60:  "1h",
		90:  "1h 30m",
		125: "2h 5m",
	}
	for minutes, want := range cases {
		if got := formatDuration(minutes); got != want {
			t.Fatalf("formatDuration(%d) = %q, want %q", minutes, got, want)
		}
	}
}
