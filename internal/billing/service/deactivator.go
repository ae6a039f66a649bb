package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/billing/domain"
	"github.com/devmarvs/backoffice/internal/clock"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	"gorm.io/gorm"
)

// LinkDeactivator retires live checkout links when an invoice settles. It
// depends only on the billing repository so the invoice service can take it
// without a dependency cycle.
type LinkDeactivator struct {
	repo  domain.Repository
	clock clock.Clock
}

func NewLinkDeactivator(repo domain.Repository, clk clock.Clock) invoicedomain.PaymentLinkDeactivator {
	return &LinkDeactivator{repo: repo, clock: clk}
}

func (d *LinkDeactivator) DeactivateForInvoice(ctx context.Context, db *gorm.DB, userID, invoiceID snowflake.ID) error {
	return d.repo.DeactivateLinksForInvoice(ctx, db, invoiceID, d.clock.Now().UTC())
}
