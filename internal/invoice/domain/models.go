package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
	StatusPaid  Status = "paid"
	StatusVoid  Status = "void"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusVoid:
		return true
	default:
		return false
	}
}

// transitions is the legal state machine. paid and void are terminal.
var transitions = map[Status][]Status{
	StatusDraft: {StatusSent, StatusPaid, StatusVoid},
	StatusSent:  {StatusPaid, StatusVoid},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type InvoiceDraft struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID `json:"user_id" gorm:"not null"`
	ClientID    snowflake.ID `json:"client_id" gorm:"not null"`
	PeriodStart *time.Time   `json:"period_start"`
	PeriodEnd   *time.Time   `json:"period_end"`
	AmountCents int64        `json:"amount_cents" gorm:"not null;default:0"`
	Currency    string       `json:"currency" gorm:"type:text;not null"`
	Status      Status       `json:"status" gorm:"type:text;not null;default:'draft'"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`

	Lines []InvoiceLine `json:"lines,omitempty" gorm:"-"`
}

func (InvoiceDraft) TableName() string { return "invoice_drafts" }

// Quantity is stored as its canonical "%.2f" rendering so the value survives
// every SQL dialect untouched.
type InvoiceLine struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceDraftID snowflake.ID  `json:"invoice_draft_id" gorm:"not null"`
	WorkEventID    *snowflake.ID `json:"work_event_id"`
	Description    string        `json:"description" gorm:"type:text;not null"`
	Quantity       string        `json:"quantity" gorm:"type:numeric(10,2);not null"`
	UnitPriceCents int64         `json:"unit_price_cents" gorm:"not null;default:0"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

type CreateDraftRequest struct {
	ClientID    snowflake.ID
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	AmountCents int64
	Currency    string
}

type AddLineRequest struct {
	WorkEventID    *snowflake.ID
	Description    string
	Quantity       string
	UnitPriceCents int64
}

type ListRequest struct {
	Status *Status
	Limit  int
	Offset int
}

type ExportRow struct {
	InvoiceID   snowflake.ID
	ClientName  string
	Status      Status
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}

// PaymentLinkDeactivator is satisfied by the billing module. Paying or
// voiding an invoice turns off any live checkout link pointing at it.
type PaymentLinkDeactivator interface {
	DeactivateForInvoice(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) error
}

type Service interface {
	CreateDraft(ctx context.Context, db *gorm.DB, userID snowflake.ID, req CreateDraftRequest) (*InvoiceDraft, error)
	AddLine(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID, req AddLineRequest) (*InvoiceLine, error)
	RecomputeAmount(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (int64, error)
	GetByID(ctx context.Context, userID, invoiceID snowflake.ID) (*InvoiceDraft, error)
	List(ctx context.Context, userID snowflake.ID, req ListRequest) ([]InvoiceDraft, error)
	ListDraftsCreatedBefore(ctx context.Context, userID snowflake.ID, cutoff time.Time) ([]InvoiceDraft, error)

	// Transition applies the draft->sent->paid / ->void state machine.
	Transition(ctx context.Context, userID, invoiceID snowflake.ID, to Status) (*InvoiceDraft, error)

	// MarkPaidByProvider is the webhook path: it settles the invoice if it
	// is still payable and reports whether this call changed anything.
	MarkPaidByProvider(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID, provider string) (bool, error)

	BulkMarkSent(ctx context.Context, userID snowflake.ID, invoiceIDs []snowflake.ID) (int64, error)
	Email(ctx context.Context, userID, invoiceID snowflake.ID, to string) (*InvoiceDraft, error)
	ExportCSV(ctx context.Context, userID snowflake.ID, from, to time.Time) ([]byte, error)
}

type Repository interface {
	InsertDraft(ctx context.Context, db *gorm.DB, draft *InvoiceDraft) error
	InsertLine(ctx context.Context, db *gorm.DB, line *InvoiceLine) error
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLine, error)
	FindByID(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) (*InvoiceDraft, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, req ListRequest) ([]InvoiceDraft, error)
	ListDraftsCreatedBefore(ctx context.Context, db *gorm.DB, userID snowflake.ID, cutoff time.Time) ([]InvoiceDraft, error)
	ListForExport(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]ExportRow, error)
	UpdateAmount(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, amountCents int64, updatedAt time.Time) error

	// UpdateStatusGuarded flips status only when the row is still in one of
	// the from states. Returns false when nothing matched.
	UpdateStatusGuarded(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID, to Status, from []Status, updatedAt time.Time) (bool, error)

	BulkMarkSent(ctx context.Context, db *gorm.DB, userID snowflake.ID, invoiceIDs []snowflake.ID, updatedAt time.Time) (int64, error)
}

var (
	ErrNotFound          = errors.New("invoice_not_found")
	ErrInvalidStatus     = errors.New("invalid_invoice_status")
	ErrInvalidTransition = errors.New("invalid_invoice_transition")
	ErrInvalidLine       = errors.New("invalid_invoice_line")
	ErrNoRecipient       = errors.New("invoice_recipient_missing")
)

// FormatAmount renders cents as "CUR X.YZ", e.g. "EUR 90.00".
func FormatAmount(currency string, cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
