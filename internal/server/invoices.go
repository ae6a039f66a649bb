package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListInvoices(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req invoicedomain.ListRequest
	if raw := c.Query("status"); raw != "" {
		status := invoicedomain.Status(raw)
		if !status.Valid() {
			AbortWithError(c, invoicedomain.ErrInvalidStatus)
			return
		}
		req.Status = &status
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.Offset = offset
	}

	drafts, err := s.invoiceSvc.List(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": drafts})
}

type createDraftRequest struct {
	ClientID    snowflake.ID `json:"client_id"`
	PeriodStart *time.Time   `json:"period_start"`
	PeriodEnd   *time.Time   `json:"period_end"`
	Currency    string       `json:"currency"`
}

func (s *Server) CreateInvoiceDraft(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	draft, err := s.invoiceSvc.CreateDraft(c.Request.Context(), nil, userID, invoicedomain.CreateDraftRequest{
		ClientID:    req.ClientID,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Currency:    req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": draft})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		return
	}

	draft, err := s.invoiceSvc.GetByID(c.Request.Context(), userID, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": draft})
}

type addLineRequest struct {
	WorkEventID    *snowflake.ID `json:"work_event_id"`
	Description    string        `json:"description"`
	Quantity       string        `json:"quantity"`
	UnitPriceCents int64         `json:"unit_price_cents"`
}

func (s *Server) AddInvoiceLine(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	line, err := s.invoiceSvc.AddLine(c.Request.Context(), nil, userID, invoiceID, invoicedomain.AddLineRequest{
		WorkEventID:    req.WorkEventID,
		Description:    req.Description,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": line})
}

type transitionInvoiceRequest struct {
	To string `json:"to"`
}

func (s *Server) TransitionInvoice(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transitionInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	to := invoicedomain.Status(req.To)
	if !to.Valid() {
		AbortWithError(c, invoicedomain.ErrInvalidStatus)
		return
	}

	draft, err := s.invoiceSvc.Transition(c.Request.Context(), userID, invoiceID, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": draft})
}

type bulkMarkSentRequest struct {
	InvoiceIDs []snowflake.ID `json:"invoice_ids"`
}

func (s *Server) BulkMarkInvoicesSent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req bulkMarkSentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	updated, err := s.invoiceSvc.BulkMarkSent(c.Request.Context(), userID, req.InvoiceIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"requested": len(req.InvoiceIDs),
		"updated":   updated,
	}})
}

type emailInvoiceRequest struct {
	To string `json:"to"`
}

func (s *Server) EmailInvoice(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req emailInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	draft, err := s.invoiceSvc.Email(c.Request.Context(), userID, invoiceID, req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordInvoiceEmailed()
	c.JSON(http.StatusOK, gin.H{"data": draft})
}

func (s *Server) ExportInvoices(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	from, ok := parseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to")
	if !ok {
		return
	}

	start := time.Time{}
	if from != nil {
		start = *from
	}
	end := time.Now().UTC()
	if to != nil {
		end = *to
	}

	csvData, err := s.invoiceSvc.ExportCSV(c.Request.Context(), userID, start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="invoices.csv"`)
	c.Data(http.StatusOK, "text/csv", csvData)
}

func (s *Server) CreateInvoicePaymentLink(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		return
	}
	refresh := c.Query("refresh") == "true"

	link, err := s.billingSvc.CreatePaymentLink(c.Request.Context(), userID, invoiceID, refresh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": link})
}
