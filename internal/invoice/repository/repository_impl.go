package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertDraft(ctx context.Context, db *gorm.DB, draft *domain.InvoiceDraft) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_drafts (id, user_id, client_id, period_start, period_end, amount_cents, currency, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.ID,
		draft.UserID,
		draft.ClientID,
		draft.PeriodStart,
		draft.PeriodEnd,
		draft.AmountCents,
		draft.Currency,
		draft.Status,
		draft.CreatedAt,
		draft.UpdatedAt,
	).Error
}

func (r *repo) InsertLine(ctx context.Context, db *gorm.DB, line *domain.InvoiceLine) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_lines (id, invoice_draft_id, work_event_id, description, quantity, unit_price_cents)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		line.ID,
		line.InvoiceDraftID,
		line.WorkEventID,
		line.Description,
		line.Quantity,
		line.UnitPriceCents,
	).Error
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceLine, error) {
	var rows []domain.InvoiceLine
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_draft_id, work_event_id, description, quantity, unit_price_cents
		 FROM invoice_lines WHERE invoice_draft_id = ?
		 ORDER BY id ASC`,
		invoiceID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (*domain.InvoiceDraft, error) {
	var draft domain.InvoiceDraft
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, client_id, period_start, period_end, amount_cents, currency, status, created_at, updated_at
		 FROM invoice_drafts WHERE id = ? AND user_id = ?`,
		invoiceID,
		userID,
	).Scan(&draft).Error
	if err != nil {
		return nil, err
	}
	if draft.ID == 0 {
		return nil, nil
	}
	return &draft, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, req domain.ListRequest) ([]domain.InvoiceDraft, error) {
	query := `SELECT id, user_id, client_id, period_start, period_end, amount_cents, currency, status, created_at, updated_at
		 FROM invoice_drafts WHERE user_id = ?`
	args := []interface{}{userID}
	if req.Status != nil {
		query += ` AND status = ?`
		args = append(args, *req.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if req.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, req.Limit)
	}
	if req.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, req.Offset)
	}

	var rows []domain.InvoiceDraft
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListDraftsCreatedBefore(ctx context.Context, db *gorm.DB, userID snowflake.ID, cutoff time.Time) ([]domain.InvoiceDraft, error) {
	var rows []domain.InvoiceDraft
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, client_id, period_start, period_end, amount_cents, currency, status, created_at, updated_at
		 FROM invoice_drafts
		 WHERE user_id = ? AND status = 'draft' AND created_at <= ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
		cutoff,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListForExport(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]domain.ExportRow, error) {
	var rows []domain.ExportRow
	err := db.WithContext(ctx).Raw(
		`SELECT d.id AS invoice_id, c.name AS client_name, d.status, d.amount_cents, d.currency, d.created_at
		 FROM invoice_drafts d
		 JOIN clients c ON c.id = d.client_id AND c.user_id = d.user_id
		 WHERE d.user_id = ? AND d.created_at >= ? AND d.created_at <= ?
		 ORDER BY d.created_at ASC, d.id ASC`,
		userID,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpdateAmount(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, amountCents int64, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoice_drafts SET amount_cents = ?, updated_at = ? WHERE id = ?`,
		amountCents,
		updatedAt,
		invoiceID,
	).Error
}

func (r *repo) UpdateStatusGuarded(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID, to domain.Status, from []domain.Status, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoice_drafts SET status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND status IN ?`,
		to,
		updatedAt,
		invoiceID,
		userID,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) BulkMarkSent(ctx context.Context, db *gorm.DB, userID snowflake.ID, invoiceIDs []snowflake.ID, updatedAt time.Time) (int64, error) {
	if len(invoiceIDs) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE invoice_drafts SET status = 'sent', updated_at = ?
		 WHERE user_id = ? AND status = 'draft' AND id IN ?`,
		updatedAt,
		userID,
		invoiceIDs,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
