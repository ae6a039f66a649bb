package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/billing/domain"
)

// Adapter verifies and parses Stripe webhook deliveries into provider events.
type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Verify(payload []byte, sigHeader string) error {
	sigHeader = strings.TrimSpace(sigHeader)
	if a.webhookSecret == "" || sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func (a *Adapter) Parse(payload []byte) (*domain.ProviderEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	eventType := strings.TrimSpace(event.Type)
	parsed := &domain.ProviderEvent{
		Provider:  "stripe",
		EventID:   event.ID,
		EventType: eventType,
		Kind:      kindOf(eventType),
		Payload:   payload,
	}

	var object stripeObject
	if len(event.Data.Object) > 0 {
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, domain.ErrInvalidPayload
		}
	}

	parsed.CustomerID = stringField(object.Customer)
	parsed.SubscriptionID = stringField(object.Subscription)
	if parsed.SubscriptionID == "" && strings.HasPrefix(object.ID, "sub_") {
		parsed.SubscriptionID = object.ID
	}
	parsed.Status = strings.ToLower(strings.TrimSpace(object.Status))
	parsed.PaymentLinkRef = linkRef(object)
	parsed.UserID = userRef(object)
	parsed.PeriodEnd = periodEnd(object)

	return parsed, nil
}

func kindOf(eventType string) domain.EventKind {
	switch eventType {
	case "checkout.session.completed":
		return domain.KindCheckoutCompleted
	case "payment_intent.payment_failed", "payment_intent.canceled",
		"checkout.session.async_payment_failed":
		return domain.KindPaymentFailed
	case "charge.refunded", "charge.refund.updated":
		return domain.KindRefunded
	case "charge.dispute.created":
		return domain.KindDisputed
	case "customer.subscription.updated":
		return domain.KindSubscriptionUpdated
	case "customer.subscription.deleted":
		return domain.KindSubscriptionDeleted
	default:
		return domain.KindUnhandled
	}
}

type stripeEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

// stripeObject is the union of the fields we read across checkout sessions,
// payment intents, charges, disputes, and subscriptions.
type stripeObject struct {
	ID                string          `json:"id"`
	Customer          json.RawMessage `json:"customer"`
	Subscription      json.RawMessage `json:"subscription"`
	Status            string          `json:"status"`
	ClientReferenceID string          `json:"client_reference_id"`
	PaymentLink       json.RawMessage `json:"payment_link"`
	CurrentPeriodEnd  int64           `json:"current_period_end"`
	Metadata          map[string]any  `json:"metadata"`
}

// stringField reads a Stripe field that is either an id string or an
// expanded object with an "id" key.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}

func linkRef(object stripeObject) string {
	if ref := stringField(object.PaymentLink); ref != "" {
		return ref
	}
	return readMetadataValue(object.Metadata, "payment_link_id")
}

func userRef(object stripeObject) snowflake.ID {
	raw := strings.TrimSpace(object.ClientReferenceID)
	if raw == "" {
		raw = readMetadataValue(object.Metadata, "user_id")
	}
	if raw == "" {
		return 0
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0
	}
	return id
}

func periodEnd(object stripeObject) *time.Time {
	if object.CurrentPeriodEnd == 0 {
		return nil
	}
	at := time.Unix(object.CurrentPeriodEnd, 0).UTC()
	return &at
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	default:
		return ""
	}
}
