package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/devmarvs/backoffice/internal/audit/domain"
	clientdomain "github.com/devmarvs/backoffice/internal/client/domain"
	"github.com/devmarvs/backoffice/internal/clock"
	"github.com/devmarvs/backoffice/internal/config"
	"github.com/devmarvs/backoffice/internal/invoice/domain"
	"github.com/devmarvs/backoffice/internal/providers/email"
	"github.com/devmarvs/backoffice/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Clients clientdomain.Service
	Audit   auditdomain.Service
	Email   email.Provider
	PDF     pdf.Provider
	Links   domain.PaymentLinkDeactivator `optional:"true"`
}

type Service struct {
	cfg     config.Config
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	clients clientdomain.Service
	audit   auditdomain.Service
	email   email.Provider
	pdf     pdf.Provider
	links   domain.PaymentLinkDeactivator
}

func NewService(p Params) domain.Service {
	return &Service{
		cfg:     p.Config,
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		clients: p.Clients,
		audit:   p.Audit,
		email:   p.Email,
		pdf:     p.PDF,
		links:   p.Links,
	}
}

func (s *Service) CreateDraft(ctx context.Context, db *gorm.DB, userID snowflake.ID, req domain.CreateDraftRequest) (*domain.InvoiceDraft, error) {
	if db == nil {
		db = s.db
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	now := s.clock.Now().UTC()
	draft := &domain.InvoiceDraft{
		ID:          s.genID.Generate(),
		UserID:      userID,
		ClientID:    req.ClientID,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		AmountCents: req.AmountCents,
		Currency:    currency,
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertDraft(ctx, db, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *Service) AddLine(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID, req domain.AddLineRequest) (*domain.InvoiceLine, error) {
	if db == nil {
		db = s.db
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidLine
	}
	quantity := strings.TrimSpace(req.Quantity)
	if quantity == "" {
		quantity = "1.00"
	}
	if _, err := strconv.ParseFloat(quantity, 64); err != nil {
		return nil, domain.ErrInvalidLine
	}

	draft, err := s.repo.FindByID(ctx, db, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, domain.ErrNotFound
	}
	// Lines may still land on a sent invoice; only the terminal states are
	// frozen.
	if draft.Status == domain.StatusPaid || draft.Status == domain.StatusVoid {
		return nil, domain.ErrInvalidTransition
	}

	line := &domain.InvoiceLine{
		ID:             s.genID.Generate(),
		InvoiceDraftID: invoiceID,
		WorkEventID:    req.WorkEventID,
		Description:    description,
		Quantity:       quantity,
		UnitPriceCents: req.UnitPriceCents,
	}
	if err := s.repo.InsertLine(ctx, db, line); err != nil {
		return nil, err
	}
	if _, err := s.RecomputeAmount(ctx, db, userID, invoiceID); err != nil {
		return nil, err
	}
	return line, nil
}

// RecomputeAmount sets amount_cents to the sum of quantity * unit_price_cents
// over the invoice's lines, each term rounded to the nearest cent.
func (s *Service) RecomputeAmount(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (int64, error) {
	if db == nil {
		db = s.db
	}

	lines, err := s.repo.ListLines(ctx, db, invoiceID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, line := range lines {
		qty, err := strconv.ParseFloat(line.Quantity, 64)
		if err != nil {
			return 0, fmt.Errorf("invoice %d line %d: bad quantity %q", invoiceID, line.ID, line.Quantity)
		}
		total += int64(math.Round(qty * float64(line.UnitPriceCents)))
	}
	if err := s.repo.UpdateAmount(ctx, db, invoiceID, total, s.clock.Now().UTC()); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) GetByID(ctx context.Context, userID, invoiceID snowflake.ID) (*domain.InvoiceDraft, error) {
	draft, err := s.repo.FindByID(ctx, s.db, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	draft.Lines = lines
	return draft, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, req domain.ListRequest) ([]domain.InvoiceDraft, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, s.db, userID, req)
}

func (s *Service) ListDraftsCreatedBefore(ctx context.Context, userID snowflake.ID, cutoff time.Time) ([]domain.InvoiceDraft, error) {
	return s.repo.ListDraftsCreatedBefore(ctx, s.db, userID, cutoff)
}

func (s *Service) Transition(ctx context.Context, userID, invoiceID snowflake.ID, to domain.Status) (*domain.InvoiceDraft, error) {
	if !to.Valid() || to == domain.StatusDraft {
		return nil, domain.ErrInvalidStatus
	}

	draft, err := s.repo.FindByID(ctx, s.db, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, domain.ErrNotFound
	}
	if !domain.CanTransition(draft.Status, to) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateStatusGuarded(ctx, tx, userID, invoiceID, to, []domain.Status{draft.Status}, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		if to == domain.StatusPaid || to == domain.StatusVoid {
			if err := s.deactivateLinks(ctx, tx, userID, invoiceID); err != nil {
				return err
			}
		}
		return s.audit.RecordTx(ctx, tx, userID, "invoice."+string(to), "invoice_draft", &invoiceID, map[string]any{
			"from": string(draft.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	draft.Status = to
	draft.UpdatedAt = now
	return draft, nil
}

func (s *Service) MarkPaidByProvider(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID, provider string) (bool, error) {
	if db == nil {
		db = s.db
	}

	now := s.clock.Now().UTC()
	ok, err := s.repo.UpdateStatusGuarded(ctx, db, userID, invoiceID, domain.StatusPaid,
		[]domain.Status{domain.StatusDraft, domain.StatusSent}, now)
	if err != nil {
		return false, err
	}
	if !ok {
		// Already paid or void. Settlement replays land here.
		return false, nil
	}

	if err := s.deactivateLinks(ctx, db, userID, invoiceID); err != nil {
		return false, err
	}
	if err := s.audit.RecordTx(ctx, db, userID, "invoice.paid", "invoice_draft", &invoiceID, map[string]any{
		"provider": provider,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) BulkMarkSent(ctx context.Context, userID snowflake.ID, invoiceIDs []snowflake.ID) (int64, error) {
	now := s.clock.Now().UTC()
	count, err := s.repo.BulkMarkSent(ctx, s.db, userID, invoiceIDs, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := s.audit.Record(ctx, userID, "invoice.bulk_sent", "invoice_draft", nil, map[string]any{
			"requested": len(invoiceIDs),
			"updated":   count,
		}); err != nil {
			s.log.Warn("audit record failed", zap.Error(err))
		}
	}
	return count, nil
}

func (s *Service) Email(ctx context.Context, userID, invoiceID snowflake.ID, to string) (*domain.InvoiceDraft, error) {
	draft, err := s.GetByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.GetByID(ctx, userID, draft.ClientID)
	if err != nil {
		return nil, err
	}

	recipient := strings.TrimSpace(to)
	if recipient == "" {
		recipient = strings.TrimSpace(client.Email)
	}
	if recipient == "" {
		return nil, domain.ErrNoRecipient
	}

	doc, err := s.pdf.GenerateInvoice(ctx, s.buildInvoicePDF(draft, client))
	if err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("Invoice %s from %s", draft.ID.String(), s.cfg.AppName)
	body := fmt.Sprintf("Hi %s,\n\nPlease find invoice %s attached. The total is %s.\n",
		client.Name, draft.ID.String(), domain.FormatAmount(draft.Currency, draft.AmountCents))
	err = s.email.SendWithAttachment(ctx, []string{recipient}, subject, body, email.Attachment{
		Filename:    fmt.Sprintf("invoice-%s.pdf", draft.ID.String()),
		ContentType: "application/pdf",
		Data:        doc,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if draft.Status == domain.StatusDraft {
		ok, err := s.repo.UpdateStatusGuarded(ctx, s.db, userID, invoiceID, domain.StatusSent,
			[]domain.Status{domain.StatusDraft}, now)
		if err != nil {
			return nil, err
		}
		if ok {
			draft.Status = domain.StatusSent
			draft.UpdatedAt = now
		}
	}

	if err := s.audit.Record(ctx, userID, "invoice.emailed", "invoice_draft", &invoiceID, map[string]any{
		"to": recipient,
	}); err != nil {
		s.log.Warn("audit record failed", zap.Error(err))
	}
	return draft, nil
}

func (s *Service) ExportCSV(ctx context.Context, userID snowflake.ID, from, to time.Time) ([]byte, error) {
	rows, err := s.repo.ListForExport(ctx, s.db, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"invoice_id", "client", "status", "amount", "currency", "created_at"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.InvoiceID.String(),
			row.ClientName,
			string(row.Status),
			fmt.Sprintf("%d.%02d", row.AmountCents/100, abs64(row.AmountCents)%100),
			row.Currency,
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) buildInvoicePDF(draft *domain.InvoiceDraft, client *clientdomain.Client) pdf.InvoiceData {
	data := pdf.InvoiceData{
		InvoiceNumber: draft.ID.String(),
		IssueDate:     draft.CreatedAt.UTC().Format("Jan 2, 2006"),
		Status:        string(draft.Status),
		BusinessName:  s.cfg.AppName,
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		Total:         domain.FormatAmount(draft.Currency, draft.AmountCents),
	}
	if draft.PeriodStart != nil {
		data.PeriodStart = draft.PeriodStart.UTC().Format("Jan 2, 2006")
	}
	if draft.PeriodEnd != nil {
		data.PeriodEnd = draft.PeriodEnd.UTC().Format("Jan 2, 2006")
	}
	for _, line := range draft.Lines {
		qty, _ := strconv.ParseFloat(line.Quantity, 64)
		amount := int64(math.Round(qty * float64(line.UnitPriceCents)))
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   domain.FormatAmount(draft.Currency, line.UnitPriceCents),
			Amount:      domain.FormatAmount(draft.Currency, amount),
		})
	}
	return data
}

func (s *Service) deactivateLinks(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) error {
	if s.links == nil {
		return nil
	}
	return s.links.DeactivateForInvoice(ctx, db, userID, invoiceID)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
