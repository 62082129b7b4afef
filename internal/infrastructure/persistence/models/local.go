package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// The local commerce tables below are the records the engine keeps in step
// with the remote platform. Every sync write stamps last_sync_origin with
// the origin the change came from; watermark scans skip rows whose latest
// write carries the REMOTE marker so applied changes never echo back.
// Application write paths that edit these tables directly must reset the
// marker to the empty string, or their edits stay hidden from the scan.

// LocalProductModel is the persistence model for a local product record.
type LocalProductModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	SKU            string          `gorm:"type:varchar(100);not null;uniqueIndex:uq_products_sku"`
	Name           string          `gorm:"type:varchar(255);not null"`
	Description    string          `gorm:"type:text"`
	Price          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string          `gorm:"type:varchar(3);not null;default:'USD'"`
	PriceList      string          `gorm:"type:varchar(50);not null;default:''"`
	Active         bool            `gorm:"not null;default:true"`
	LastSyncOrigin string          `gorm:"type:varchar(10);not null;default:''"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null;index:idx_products_updated"`
}

// TableName returns the table name for GORM
func (LocalProductModel) TableName() string {
	return "products"
}

// ToState converts the record to a normalized snapshot.
func (m *LocalProductModel) ToState() *syncdomain.EntityState {
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeProduct,
		Origin:     syncdomain.OriginLocal,
		ID:         m.ID.String(),
		Attributes: map[string]any{
			"sku":         m.SKU,
			"name":        m.Name,
			"description": m.Description,
			"price":       m.Price,
			"currency":    m.Currency,
			"active":      m.Active,
		},
		ModifiedAt: m.UpdatedAt,
		Deleted:    !m.Active,
	}
}

// ApplyState overwrites the record's business fields from a snapshot.
func (m *LocalProductModel) ApplyState(state *syncdomain.EntityState) {
	m.SKU = attrString(state, "sku", m.SKU)
	m.Name = attrString(state, "name", m.Name)
	m.Description = attrString(state, "description", m.Description)
	m.Price = attrDecimal(state, "price", m.Price)
	m.Currency = attrString(state, "currency", m.Currency)
	m.Active = attrBool(state, "active", true) && !state.Deleted
}

// LocalCustomerModel is the persistence model for a local customer record.
type LocalCustomerModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	Email          string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_customers_email"`
	FirstName      string    `gorm:"type:varchar(100);not null;default:''"`
	LastName       string    `gorm:"type:varchar(100);not null;default:''"`
	Phone          string    `gorm:"type:varchar(50);not null;default:''"`
	Active         bool      `gorm:"not null;default:true"`
	LastSyncOrigin string    `gorm:"type:varchar(10);not null;default:''"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null;index:idx_customers_updated"`
}

// TableName returns the table name for GORM
func (LocalCustomerModel) TableName() string {
	return "customers"
}

// ToState converts the record to a normalized snapshot.
func (m *LocalCustomerModel) ToState() *syncdomain.EntityState {
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeCustomer,
		Origin:     syncdomain.OriginLocal,
		ID:         m.ID.String(),
		Attributes: map[string]any{
			"email":      m.Email,
			"first_name": m.FirstName,
			"last_name":  m.LastName,
			"phone":      m.Phone,
		},
		ModifiedAt: m.UpdatedAt,
		Deleted:    !m.Active,
	}
}

// ApplyState overwrites the record's business fields from a snapshot.
func (m *LocalCustomerModel) ApplyState(state *syncdomain.EntityState) {
	m.Email = attrString(state, "email", m.Email)
	m.FirstName = attrString(state, "first_name", m.FirstName)
	m.LastName = attrString(state, "last_name", m.LastName)
	m.Phone = attrString(state, "phone", m.Phone)
	m.Active = !state.Deleted
}

// LocalSalesOrderModel is the persistence model for a local sales order record.
type LocalSalesOrderModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderNumber    string          `gorm:"type:varchar(50);not null;uniqueIndex:uq_sales_orders_number"`
	CustomerEmail  string          `gorm:"type:varchar(255);not null;default:'';index"`
	Status         string          `gorm:"type:varchar(30);not null;default:'NEW'"`
	Total          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string          `gorm:"type:varchar(3);not null;default:'USD'"`
	LinesJSON      string          `gorm:"type:jsonb;column:lines"`
	PlacedAt       time.Time       `gorm:"not null"`
	LastSyncOrigin string          `gorm:"type:varchar(10);not null;default:''"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null;index:idx_sales_orders_updated"`
}

// TableName returns the table name for GORM
func (LocalSalesOrderModel) TableName() string {
	return "sales_orders"
}

// ToState converts the record to a normalized snapshot.
func (m *LocalSalesOrderModel) ToState() *syncdomain.EntityState {
	var lines []any
	if m.LinesJSON != "" {
		// Unparsable line payloads degrade to an empty list
		_ = json.Unmarshal([]byte(m.LinesJSON), &lines)
	}
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeOrder,
		Origin:     syncdomain.OriginLocal,
		ID:         m.ID.String(),
		Attributes: map[string]any{
			"number":         m.OrderNumber,
			"customer_email": m.CustomerEmail,
			"status":         m.Status,
			"total":          m.Total,
			"currency":       m.Currency,
			"line_items":     lines,
			"placed_at":      m.PlacedAt,
		},
		ModifiedAt: m.UpdatedAt,
		Deleted:    m.Status == "CANCELLED",
	}
}

// ApplyState overwrites the record's business fields from a snapshot.
func (m *LocalSalesOrderModel) ApplyState(state *syncdomain.EntityState) {
	m.OrderNumber = attrString(state, "number", m.OrderNumber)
	m.CustomerEmail = attrString(state, "customer_email", m.CustomerEmail)
	m.Status = attrString(state, "status", m.Status)
	m.Total = attrDecimal(state, "total", m.Total)
	m.Currency = attrString(state, "currency", m.Currency)
	m.PlacedAt = attrTime(state, "placed_at", m.PlacedAt)
	if state.Deleted {
		m.Status = "CANCELLED"
	}
	if lines, ok := state.Attributes["line_items"]; ok {
		if jsonBytes, err := json.Marshal(lines); err == nil {
			m.LinesJSON = string(jsonBytes)
		}
	}
}

// LocalInventoryItemModel is the persistence model for a local stock level.
type LocalInventoryItemModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	SKU            string    `gorm:"type:varchar(100);not null;uniqueIndex:uq_inventory_items_sku_warehouse,priority:1"`
	Warehouse      string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_inventory_items_sku_warehouse,priority:2"`
	Quantity       int64     `gorm:"not null;default:0"`
	TrackInventory bool      `gorm:"not null;default:true"`
	LastSyncOrigin string    `gorm:"type:varchar(10);not null;default:''"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null;index:idx_inventory_items_updated"`
}

// TableName returns the table name for GORM
func (LocalInventoryItemModel) TableName() string {
	return "inventory_items"
}

// ToState converts the record to a normalized snapshot.
func (m *LocalInventoryItemModel) ToState() *syncdomain.EntityState {
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeInventoryLevel,
		Origin:     syncdomain.OriginLocal,
		ID:         m.ID.String(),
		Attributes: map[string]any{
			"sku":             m.SKU,
			"warehouse":       m.Warehouse,
			"quantity":        m.Quantity,
			"track_inventory": m.TrackInventory,
		},
		ModifiedAt: m.UpdatedAt,
	}
}

// ApplyState overwrites the record's business fields from a snapshot.
// Negative quantities clamp to zero; oversold remote counts must not
// drive local stock below empty.
func (m *LocalInventoryItemModel) ApplyState(state *syncdomain.EntityState) {
	m.SKU = attrString(state, "sku", m.SKU)
	m.Warehouse = attrString(state, "warehouse", m.Warehouse)
	m.TrackInventory = attrBool(state, "track_inventory", m.TrackInventory)
	qty := attrInt(state, "quantity", m.Quantity)
	if qty < 0 {
		qty = 0
	}
	m.Quantity = qty
}

// ---------------------------------------------------------------------------
// Attribute extraction helpers
// ---------------------------------------------------------------------------

// Snapshots cross process boundaries, so attribute values arrive as whatever
// the decoder produced. The helpers below coerce the common encodings and
// fall back to the record's current value when an attribute is absent or has
// an unusable shape.

func attrString(state *syncdomain.EntityState, key, fallback string) string {
	if v, ok := state.Attributes[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func attrBool(state *syncdomain.EntityState, key string, fallback bool) bool {
	if v, ok := state.Attributes[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

func attrDecimal(state *syncdomain.EntityState, key string, fallback decimal.Decimal) decimal.Decimal {
	v, ok := state.Attributes[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(t); err == nil {
			return d
		}
	}
	return fallback
}

func attrInt(state *syncdomain.EntityState, key string, fallback int64) int64 {
	v, ok := state.Attributes[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
	case decimal.Decimal:
		return t.IntPart()
	}
	return fallback
}

func attrTime(state *syncdomain.EntityState, key string, fallback time.Time) time.Time {
	v, ok := state.Attributes[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return fallback
}
