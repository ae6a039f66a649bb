package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/billing/domain"
)

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", timestamp, payload)))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	adapter := NewAdapter(secret)
	if err := adapter.Verify(payload, buildSignatureHeader(secret, payload, timestamp)); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	if err := adapter.Verify(payload, buildSignatureHeader("wrong", payload, timestamp)); err == nil {
		t.Fatalf("expected invalid signature error")
	}
	if err := adapter.Verify(payload, ""); err == nil {
		t.Fatalf("expected error for missing header")
	}
}

func TestParseEventKinds(t *testing.T) {
	adapter := NewAdapter("whsec_test")

	tests := []struct {
		eventType string
		want      domain.EventKind
	}{
		{"checkout.session.completed", domain.KindCheckoutCompleted},
		{"checkout.session.async_payment_failed", domain.KindPaymentFailed},
		{"payment_intent.payment_failed", domain.KindPaymentFailed},
		{"payment_intent.canceled", domain.KindPaymentFailed},
		{"charge.refunded", domain.KindRefunded},
		{"charge.refund.updated", domain.KindRefunded},
		{"charge.dispute.created", domain.KindDisputed},
		{"customer.subscription.updated", domain.KindSubscriptionUpdated},
		{"customer.subscription.deleted", domain.KindSubscriptionDeleted},
		{"invoice.finalized", domain.KindUnhandled},
	}
	for _, tc := range tests {
		payload := []byte(fmt.Sprintf(`{"id":"evt_1","type":"%s","data":{"object":{}}}`, tc.eventType))
		event, err := adapter.Parse(payload)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.eventType, err)
		}
		if event.Kind != tc.want {
			t.Fatalf("%s: kind = %v, want %v", tc.eventType, event.Kind, tc.want)
		}
	}
}

func TestParseCheckoutSessionFields(t *testing.T) {
	adapter := NewAdapter("whsec_test")
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	userID := node.Generate()

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_cs","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","subscription":"sub_1","status":"complete","client_reference_id":"%s","payment_link":"plink_1"}}}`,
		userID,
	))

	event, err := adapter.Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.EventID != "evt_cs" {
		t.Fatalf("event id = %q", event.EventID)
	}
	if event.UserID != userID {
		t.Fatalf("user = %v, want %v", event.UserID, userID)
	}
	if event.CustomerID != "cus_1" || event.SubscriptionID != "sub_1" {
		t.Fatalf("customer = %q, subscription = %q", event.CustomerID, event.SubscriptionID)
	}
	if event.PaymentLinkRef != "plink_1" {
		t.Fatalf("payment link = %q", event.PaymentLinkRef)
	}
}

func TestParseSubscriptionObject(t *testing.T) {
	adapter := NewAdapter("whsec_test")

	periodEnd := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_sub","type":"customer.subscription.updated","data":{"object":{"id":"sub_7","customer":"cus_7","status":"past_due","current_period_end":%d}}}`,
		periodEnd.Unix(),
	))

	event, err := adapter.Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.SubscriptionID != "sub_7" {
		t.Fatalf("subscription = %q, want sub_7", event.SubscriptionID)
	}
	if event.Status != "past_due" {
		t.Fatalf("status = %q", event.Status)
	}
	if event.PeriodEnd == nil || !event.PeriodEnd.Equal(periodEnd) {
		t.Fatalf("period end = %v, want %v", event.PeriodEnd, periodEnd)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	adapter := NewAdapter("whsec_test")

	if _, err := adapter.Parse([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := adapter.Parse([]byte(`{"type":"checkout.session.completed"}`)); err == nil {
		t.Fatalf("expected error for missing event id")
	}
}
