package pdf

import "context"

type InvoiceData struct {
	InvoiceNumber string
	IssueDate     string
	PeriodStart   string
	PeriodEnd     string
	Status        string

	BusinessName string
	ClientName   string
	ClientEmail  string

	Items []InvoiceItem

	Total string
}

type InvoiceItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	return nil, nil
}
