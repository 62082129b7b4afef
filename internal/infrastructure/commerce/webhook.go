package commerce

import (
	"encoding/json"
	"fmt"
	"time"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// WebhookEnvelope is the event wrapper the platform posts to the webhook
// endpoint. Data carries the entity body when the subscription includes
// it; many event kinds deliver only the entity id.
type WebhookEnvelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	EntityID  string          `json:"entityId"`
	EventTime string          `json:"eventTime"`
	Data      json.RawMessage `json:"data"`
}

// ParseWebhookEnvelope decodes a raw webhook body
func ParseWebhookEnvelope(raw []byte) (*WebhookEnvelope, error) {
	var env WebhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("wix: malformed webhook envelope: %w", err)
	}
	return &env, nil
}

// Route maps the envelope's event type onto the entity and change kind it
// describes. Unknown event types return ok false and are ignored upstream.
func (e *WebhookEnvelope) Route() (syncdomain.EntityType, syncdomain.ChangeKind, bool) {
	switch e.EventType {
	case "products/created":
		return syncdomain.EntityTypeProduct, syncdomain.ChangeKindCreated, true
	case "products/updated":
		return syncdomain.EntityTypeProduct, syncdomain.ChangeKindUpdated, true
	case "products/deleted":
		return syncdomain.EntityTypeProduct, syncdomain.ChangeKindDeleted, true
	case "orders/created":
		return syncdomain.EntityTypeOrder, syncdomain.ChangeKindCreated, true
	case "orders/updated":
		return syncdomain.EntityTypeOrder, syncdomain.ChangeKindUpdated, true
	case "customers/created":
		return syncdomain.EntityTypeCustomer, syncdomain.ChangeKindCreated, true
	case "customers/updated":
		return syncdomain.EntityTypeCustomer, syncdomain.ChangeKindUpdated, true
	case "inventory/updated":
		return syncdomain.EntityTypeInventoryLevel, syncdomain.ChangeKindUpdated, true
	default:
		return "", "", false
	}
}

// ObservedAt returns the event time, falling back to receipt time when
// the envelope carries none.
func (e *WebhookEnvelope) ObservedAt() time.Time {
	if t := parseWixTime(e.EventTime); !t.IsZero() {
		return t
	}
	return time.Now()
}

// NormalizeWebhookData converts the envelope's data object into a remote
// snapshot. Envelopes without a usable body return a nil state and the
// orchestrator fetches the live record instead; inventory events always
// take that path because their body layout is not stable across
// subscription versions.
func NormalizeWebhookData(entityType syncdomain.EntityType, entityID string, data []byte) (*syncdomain.EntityState, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch entityType {
	case syncdomain.EntityTypeProduct:
		var p wixProduct
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("wix: malformed product event body: %w", err)
		}
		if p.ID == "" {
			p.ID = entityID
		}
		return productState(&p), nil

	case syncdomain.EntityTypeOrder:
		var o wixOrder
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("wix: malformed order event body: %w", err)
		}
		if o.ID == "" {
			o.ID = entityID
		}
		return orderState(&o), nil

	case syncdomain.EntityTypeCustomer:
		var c wixCustomer
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("wix: malformed customer event body: %w", err)
		}
		if c.ID == "" {
			c.ID = entityID
		}
		return customerState(&c), nil

	case syncdomain.EntityTypeInventoryLevel:
		return nil, nil

	default:
		return nil, syncdomain.ErrInvalidEntityType
	}
}
