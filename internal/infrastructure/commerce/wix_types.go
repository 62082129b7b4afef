package commerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Product Types
// ---------------------------------------------------------------------------

// wixProductListResponse is the response for the product query endpoint
type wixProductListResponse struct {
	Products     []wixProduct `json:"products"`
	TotalResults int          `json:"totalResults"`
}

// wixProductResponse wraps a single product payload
type wixProductResponse struct {
	Product *wixProduct `json:"product"`
}

// wixProduct is a product as the Wix Stores catalog returns it
type wixProduct struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	SKU         string            `json:"sku"`
	Visible     bool              `json:"visible"`
	ProductType string            `json:"productType"`
	PriceData   *wixPriceData     `json:"priceData"`
	Inventory   *wixInventoryInfo `json:"inventory"`
	LastUpdated string            `json:"lastUpdated"`
}

// wixPriceData carries the product price. The platform serves the price
// as a JSON number but accepts a string on writes; decimal.Decimal
// unmarshals either form without float rounding.
type wixPriceData struct {
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

// wixInventoryInfo is the stock block embedded in a product
type wixInventoryInfo struct {
	TrackQuantity bool  `json:"trackQuantity"`
	Quantity      int64 `json:"quantity"`
}

// ---------------------------------------------------------------------------
// Order Types
// ---------------------------------------------------------------------------

// wixOrderListResponse is the response for the order query endpoint
type wixOrderListResponse struct {
	Orders       []wixOrder `json:"orders"`
	TotalResults int        `json:"totalResults"`
}

// wixOrderResponse wraps a single order payload
type wixOrderResponse struct {
	Order *wixOrder `json:"order"`
}

// wixOrder is an order as the Wix Stores API returns it
type wixOrder struct {
	ID                string          `json:"id"`
	OrderNumber       json.Number     `json:"orderNumber"`
	BuyerInfo         *wixBuyerInfo   `json:"buyerInfo"`
	Totals            *wixOrderTotals `json:"totals"`
	Currency          string          `json:"currency"`
	PaymentStatus     string          `json:"paymentStatus"`
	FulfillmentStatus string          `json:"fulfillmentStatus"`
	LineItems         []wixLineItem   `json:"lineItems"`
	DateCreated       string          `json:"dateCreated"`
	LastUpdated       string          `json:"lastUpdated"`
}

// wixBuyerInfo identifies the shopper who placed an order
type wixBuyerInfo struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Emails    []string `json:"emails"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
}

// primaryEmail returns the buyer's contact email, preferring the scalar
// field over the contact-style array form.
func (b *wixBuyerInfo) primaryEmail() string {
	if b == nil {
		return ""
	}
	if b.Email != "" {
		return b.Email
	}
	if len(b.Emails) > 0 {
		return b.Emails[0]
	}
	return ""
}

// wixOrderTotals is the money summary of an order
type wixOrderTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// wixLineItem is one purchased line on an order
type wixLineItem struct {
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ---------------------------------------------------------------------------
// Customer Types
// ---------------------------------------------------------------------------

// wixCustomerListResponse is the response for the customer query endpoint
type wixCustomerListResponse struct {
	Customers    []wixCustomer `json:"customers"`
	TotalResults int           `json:"totalResults"`
}

// wixCustomerResponse wraps a single customer payload
type wixCustomerResponse struct {
	Customer *wixCustomer `json:"customer"`
}

// wixCustomer is a storefront contact. Email and phone arrive as arrays;
// only the first entry of each is synchronized.
type wixCustomer struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Emails      []string `json:"emails"`
	Phones      []string `json:"phones"`
	LastUpdated string   `json:"lastUpdated"`
	UpdatedDate string   `json:"updatedDate"`
}

// ---------------------------------------------------------------------------
// Shared Helpers
// ---------------------------------------------------------------------------

// parseWixTime parses the platform's RFC3339 timestamps, returning the
// zero time for absent or damaged values.
func parseWixTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
