package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepo "github.com/devmarvs/backoffice/internal/audit/repository"
	auditservice "github.com/devmarvs/backoffice/internal/audit/service"
	clientrepo "github.com/devmarvs/backoffice/internal/client/repository"
	clientservice "github.com/devmarvs/backoffice/internal/client/service"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/config"
	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	followuprepo "github.com/devmarvs/backoffice/internal/followup/repository"
	followupservice "github.com/devmarvs/backoffice/internal/followup/service"
	invoicerepo "github.com/devmarvs/backoffice/internal/invoice/repository"
	invoiceservice "github.com/devmarvs/backoffice/internal/invoice/service"
	"github.com/devmarvs/backoffice/internal/providers/email"
	"github.com/devmarvs/backoffice/internal/providers/pdf"
	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	settingsrepo "github.com/devmarvs/backoffice/internal/settings/repository"
	settingsservice "github.com/devmarvs/backoffice/internal/settings/service"
	templaterepo "github.com/devmarvs/backoffice/internal/template/repository"
	templateservice "github.com/devmarvs/backoffice/internal/template/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type reminderFixture struct {
	svc       *Service
	settings  settingsdomain.Service
	followUps followupdomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
}

func setupReminderService(t *testing.T) *reminderFixture {
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
	prepareReminderSchema(t, db)

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
	followUps := followupservice.NewService(followupservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: followuprepo.Provide(), Audit: audit})
	invoices := invoiceservice.NewService(invoiceservice.Params{
		Config: config.Config{AppName: "backoffice"},
		DB:     db, Log: log, GenID: node, Clock: fc,
		Repo: invoicerepo.Provide(), Clients: clients, Audit: audit,
		Email: &email.NoOpProvider{}, PDF: &pdf.NoOpProvider{},
	})

	svc := NewService(Params{
		Log: log, Clock: fc,
		Settings: settings, Invoices: invoices, FollowUps: followUps, Templates: templates, Audit: audit,
	}).(*Service)

	return &reminderFixture{svc: svc, settings: settings, followUps: followUps, db: db, node: node, clock: fc}
}

func prepareReminderSchema(t *testing.T, db *gorm.DB) {
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

func (f *reminderFixture) seedDraft(t *testing.T, userID, clientID snowflake.ID, amountCents int64, createdAt time.Time) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO invoice_drafts (id, user_id, client_id, amount_cents, currency, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'EUR', 'draft', ?, ?)`,
		id, userID, clientID, amountCents, createdAt, createdAt,
	).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return id
}

func TestRunForUserCreatesRemindersForStaleDrafts(t *testing.T) {
	f := setupReminderService(t)
	userID := f.node.Generate()
	clientID := f.node.Generate()

	// Default threshold is 7 days; clock is at 2025-01-15 12:00.
	stale := f.seedDraft(t, userID, clientID, 9000, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	f.seedDraft(t, userID, clientID, 5000, time.Date(2025, 1, 14, 10, 0, 0, 0, time.UTC))

	result, err := f.svc.RunForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("created = %d, want 1", result.Created)
	}
	if result.Disabled {
		t.Fatalf("run should not be disabled")
	}

	open := followupdomain.StatusOpen
	fus, err := f.followUps.List(context.Background(), userID, &open)
	if err != nil {
		t.Fatalf("list follow-ups: %v", err)
	}
	if len(fus) != 1 {
		t.Fatalf("follow-ups = %d, want 1", len(fus))
	}
	want := fmt.Sprintf("Reminder: invoice #%d for EUR 90.00 is ready when you are.", stale)
	if fus[0].SuggestedMessage != want {
		t.Fatalf("message = %q, want %q", fus[0].SuggestedMessage, want)
	}

	var lastRun string
	if err := f.db.Raw(`SELECT last_reminder_run_at FROM user_settings WHERE user_id = ?`, userID).Scan(&lastRun).Error; err != nil {
		t.Fatalf("select settings: %v", err)
	}
	if lastRun == "" {
		t.Fatalf("last_reminder_run_at not recorded")
	}

	var audits int
	if err := f.db.Raw(`SELECT COUNT(1) FROM audit_logs WHERE user_id = ? AND action = 'reminders.run'`, userID).Scan(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 1 {
		t.Fatalf("reminders.run audits = %d, want 1", audits)
	}
}

func TestRunForUserTwiceCreatesNoDuplicates(t *testing.T) {
	f := setupReminderService(t)
	userID := f.node.Generate()
	clientID := f.node.Generate()
	f.seedDraft(t, userID, clientID, 9000, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	first, err := f.svc.RunForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("first created = %d, want 1", first.Created)
	}

	second, err := f.svc.RunForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Created != 0 {
		t.Fatalf("second created = %d, want 0", second.Created)
	}

	var count int
	if err := f.db.Raw(`SELECT COUNT(1) FROM follow_ups WHERE user_id = ?`, userID).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("follow-ups = %d, want 1", count)
	}
}

func TestRunForUserDisabled(t *testing.T) {
	f := setupReminderService(t)
	userID := f.node.Generate()
	clientID := f.node.Generate()
	f.seedDraft(t, userID, clientID, 9000, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	zero := 0
	if _, err := f.settings.Update(context.Background(), userID, settingsdomain.UpdateSettingsRequest{
		InvoiceReminderDays: &zero,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	result, err := f.svc.RunForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Disabled {
		t.Fatalf("run should be disabled")
	}
	if result.Created != 0 {
		t.Fatalf("created = %d, want 0", result.Created)
	}

	var count int
	if err := f.db.Raw(`SELECT COUNT(1) FROM follow_ups WHERE user_id = ?`, userID).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("follow-ups = %d, want 0", count)
	}

	var metadata string
	if err := f.db.Raw(`SELECT metadata FROM audit_logs WHERE user_id = ? AND action = 'reminders.run'`, userID).Scan(&metadata).Error; err != nil {
		t.Fatalf("select audit: %v", err)
	}
	if !strings.Contains(metadata, `"disabled":true`) {
		t.Fatalf("metadata = %s, want disabled flag", metadata)
	}
}

func TestRunForUserUsesCustomTemplate(t *testing.T) {
	f := setupReminderService(t)
	userID := f.node.Generate()
	clientID := f.node.Generate()
	draftID := f.seedDraft(t, userID, clientID, 12550, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	templates := templateservice.NewService(templateservice.Params{
		DB: f.db, Log: zap.NewNop(), GenID: f.node, Clock: f.clock, Repo: templaterepo.Provide(),
	})
	if _, err := templates.Upsert(context.Background(), userID, "payment_reminder", nil, "Invoice {{invoice_id}}: {{amount}} outstanding."); err != nil {
		t.Fatalf("upsert template: %v", err)
	}

	result, err := f.svc.RunForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("created = %d", result.Created)
	}

	var message string
	if err := f.db.Raw(`SELECT suggested_message FROM follow_ups WHERE user_id = ?`, userID).Scan(&message).Error; err != nil {
		t.Fatalf("select: %v", err)
	}
	want := fmt.Sprintf("Invoice %d: EUR 125.50 outstanding.", draftID)
	if message != want {
		t.Fatalf("message = %q, want %q", message, want)
	}
}
