// Package commerce adapts the Wix Stores REST API onto the engine's
// remote platform port: changed-entity listings, single-record CRUD, and
// the webhook payload normalizer. Every outbound call passes through the
// shared rate gate, and every failure is classified into the domain's
// retryable or fatal sentinels at this boundary.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// Constants for the Wix Stores API
const (
	// maxWixResponseSize limits the response body size to prevent memory exhaustion
	maxWixResponseSize = 10 * 1024 * 1024 // 10MB max response
	// maxErrorBodySize caps how much of a rejection body lands in error text
	maxErrorBodySize = 200
	// defaultRetryAfter is used when a 429 carries no Retry-After header
	defaultRetryAfter = 60 * time.Second
)

// WixAdapter implements the RemotePlatform port against the Wix Stores
// REST API.
type WixAdapter struct {
	config     *config.WixConfig
	httpClient *http.Client
	tokens     syncdomain.TokenSource
	limiter    syncdomain.RateGate
}

// NewWixAdapter creates a Wix adapter with the given configuration. All
// requests authenticate through the token source and pace through the
// rate gate.
func NewWixAdapter(cfg *config.WixConfig, tokens syncdomain.TokenSource, limiter syncdomain.RateGate) *WixAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WixAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		limiter:    limiter,
	}
}

// ---------------------------------------------------------------------------
// Changed-Entity Listing
// ---------------------------------------------------------------------------

// wixCursor is the page token for changed-entity listings. Since is the
// lastUpdated watermark the current generation filters on, Offset is the
// position inside that generation, and Mark carries the highest
// lastUpdated seen so far; the terminal page folds Mark back into Since
// so the next generation starts where this one ended.
type wixCursor struct {
	Since  string `json:"since,omitempty"`
	Offset int    `json:"offset"`
	Mark   string `json:"mark,omitempty"`
}

// decodeCursor parses a page token. A damaged token restarts the listing
// from the beginning rather than wedging the feed.
func decodeCursor(s string) wixCursor {
	var c wixCursor
	if s == "" {
		return c
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return wixCursor{}
	}
	return c
}

// encode serializes the cursor into its opaque wire form
func (c wixCursor) encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// advance computes the follow-up page token. A full page continues the
// current generation at the next offset; a short page completes the
// generation and reseeds Since from the highest lastUpdated observed; an
// empty first page means nothing changed since the stored watermark.
func (c wixCursor) advance(fetched, pageSize int, pageMax string) (wixCursor, bool) {
	mark := maxTimestamp(c.Mark, pageMax)
	switch {
	case fetched >= pageSize:
		return wixCursor{Since: c.Since, Offset: c.Offset + fetched, Mark: mark}, true
	case fetched == 0 && c.Offset == 0:
		return wixCursor{}, false
	default:
		if mark == "" {
			mark = c.Since
		}
		if mark == "" {
			// The listing carried no usable timestamps, so there is no
			// watermark to reseed; the next run enumerates from scratch.
			return wixCursor{}, false
		}
		return wixCursor{Since: mark}, true
	}
}

// ListChanged pages through records changed since the cursor's watermark.
// Inventory levels ride on the product listing; products that do not
// track stock are skipped.
func (a *WixAdapter) ListChanged(ctx context.Context, entityType syncdomain.EntityType, cursor string, pageSize int) ([]syncdomain.RemoteRecord, string, error) {
	if pageSize <= 0 {
		pageSize = a.config.PageSize
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	cur := decodeCursor(cursor)

	var (
		records []syncdomain.RemoteRecord
		fetched int
		pageMax string
	)

	switch entityType {
	case syncdomain.EntityTypeProduct, syncdomain.EntityTypeInventoryLevel:
		products, err := a.queryProducts(ctx, cur.Since, cur.Offset, pageSize, "")
		if err != nil {
			return nil, "", err
		}
		fetched = len(products)
		for i := range products {
			p := &products[i]
			pageMax = maxTimestamp(pageMax, p.LastUpdated)
			if entityType == syncdomain.EntityTypeInventoryLevel {
				if p.Inventory == nil || p.SKU == "" {
					continue
				}
				records = append(records, syncdomain.RemoteRecord{ID: p.ID, State: inventoryState(p)})
				continue
			}
			records = append(records, syncdomain.RemoteRecord{ID: p.ID, State: productState(p)})
		}

	case syncdomain.EntityTypeOrder:
		orders, err := a.queryOrders(ctx, cur.Since, cur.Offset, pageSize)
		if err != nil {
			return nil, "", err
		}
		fetched = len(orders)
		for i := range orders {
			o := &orders[i]
			pageMax = maxTimestamp(pageMax, firstTimestamp(o.LastUpdated, o.DateCreated))
			state := orderState(o)
			records = append(records, syncdomain.RemoteRecord{ID: o.ID, State: state, Deleted: state.Deleted})
		}

	case syncdomain.EntityTypeCustomer:
		customers, err := a.queryCustomers(ctx, cur.Since, cur.Offset, pageSize)
		if err != nil {
			return nil, "", err
		}
		fetched = len(customers)
		for i := range customers {
			c := &customers[i]
			pageMax = maxTimestamp(pageMax, firstTimestamp(c.LastUpdated, c.UpdatedDate))
			records = append(records, syncdomain.RemoteRecord{ID: c.ID, State: customerState(c)})
		}

	default:
		return nil, "", syncdomain.ErrInvalidEntityType
	}

	next, more := cur.advance(fetched, pageSize, pageMax)
	if !more {
		return records, "", nil
	}
	return records, next.encode(), nil
}

// queryProducts posts a filtered page request against the product catalog
func (a *WixAdapter) queryProducts(ctx context.Context, since string, offset, limit int, sku string) ([]wixProduct, error) {
	filter := map[string]any{}
	if since != "" {
		filter["lastUpdated"] = map[string]any{"$gt": since}
	}
	if sku != "" {
		filter["sku"] = sku
	}
	body, err := a.doRequest(ctx, http.MethodPost, "/stores/v1/products/query", queryPayload(limit, offset, filter))
	if err != nil {
		return nil, err
	}
	var resp wixProductListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed product listing: %v", syncdomain.ErrPlatformUnavailable, err)
	}
	return resp.Products, nil
}

// queryOrders posts a filtered page request against the order store
func (a *WixAdapter) queryOrders(ctx context.Context, since string, offset, limit int) ([]wixOrder, error) {
	filter := map[string]any{}
	if since != "" {
		filter["lastUpdated"] = map[string]any{"$gt": since}
	}
	body, err := a.doRequest(ctx, http.MethodPost, "/stores/v1/orders/query", queryPayload(limit, offset, filter))
	if err != nil {
		return nil, err
	}
	var resp wixOrderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed order listing: %v", syncdomain.ErrPlatformUnavailable, err)
	}
	return resp.Orders, nil
}

// queryCustomers posts a filtered page request against the contact store
func (a *WixAdapter) queryCustomers(ctx context.Context, since string, offset, limit int) ([]wixCustomer, error) {
	filter := map[string]any{}
	if since != "" {
		filter["lastUpdated"] = map[string]any{"$gt": since}
	}
	body, err := a.doRequest(ctx, http.MethodPost, "/stores/v1/customers/query", queryPayload(limit, offset, filter))
	if err != nil {
		return nil, err
	}
	var resp wixCustomerListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed customer listing: %v", syncdomain.ErrPlatformUnavailable, err)
	}
	return resp.Customers, nil
}

// queryPayload builds the standard query envelope for list endpoints
func queryPayload(limit, offset int, filter map[string]any) map[string]any {
	query := map[string]any{
		"limit":  limit,
		"offset": offset,
	}
	if len(filter) > 0 {
		query["filter"] = filter
	}
	return map[string]any{"query": query}
}

// ---------------------------------------------------------------------------
// Single-Record Operations
// ---------------------------------------------------------------------------

// Get retrieves one record's normalized state. Inventory levels read
// through the owning product.
func (a *WixAdapter) Get(ctx context.Context, entityType syncdomain.EntityType, remoteID string) (*syncdomain.EntityState, error) {
	switch entityType {
	case syncdomain.EntityTypeProduct:
		p, err := a.getProduct(ctx, remoteID)
		if err != nil {
			return nil, err
		}
		return productState(p), nil

	case syncdomain.EntityTypeInventoryLevel:
		p, err := a.getProduct(ctx, remoteID)
		if err != nil {
			return nil, err
		}
		return inventoryState(p), nil

	case syncdomain.EntityTypeOrder:
		body, err := a.doRequest(ctx, http.MethodGet, "/stores/v1/orders/"+remoteID, nil)
		if err != nil {
			return nil, err
		}
		var resp wixOrderResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.Order == nil {
			return nil, fmt.Errorf("%w: malformed order payload", syncdomain.ErrPlatformUnavailable)
		}
		return orderState(resp.Order), nil

	case syncdomain.EntityTypeCustomer:
		body, err := a.doRequest(ctx, http.MethodGet, "/stores/v1/customers/"+remoteID, nil)
		if err != nil {
			return nil, err
		}
		var resp wixCustomerResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.Customer == nil {
			return nil, fmt.Errorf("%w: malformed customer payload", syncdomain.ErrPlatformUnavailable)
		}
		return customerState(resp.Customer), nil

	default:
		return nil, syncdomain.ErrInvalidEntityType
	}
}

func (a *WixAdapter) getProduct(ctx context.Context, productID string) (*wixProduct, error) {
	body, err := a.doRequest(ctx, http.MethodGet, "/stores/v1/products/"+productID, nil)
	if err != nil {
		return nil, err
	}
	var resp wixProductResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Product == nil {
		return nil, fmt.Errorf("%w: malformed product payload", syncdomain.ErrPlatformUnavailable)
	}
	return resp.Product, nil
}

// Create writes a new record and returns its platform identifier. Orders
// cannot be created from outside the storefront. An inventory level is
// created by locating the owning product by SKU and overwriting its
// stock block.
func (a *WixAdapter) Create(ctx context.Context, entityType syncdomain.EntityType, state *syncdomain.EntityState) (string, error) {
	switch entityType {
	case syncdomain.EntityTypeProduct:
		body, err := a.doRequest(ctx, http.MethodPost, "/stores/v1/products", map[string]any{"product": buildProductPayload(state)})
		if err != nil {
			return "", err
		}
		var resp wixProductResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.Product == nil || resp.Product.ID == "" {
			return "", fmt.Errorf("%w: create response carried no product id", syncdomain.ErrPlatformUnavailable)
		}
		return resp.Product.ID, nil

	case syncdomain.EntityTypeCustomer:
		body, err := a.doRequest(ctx, http.MethodPost, "/stores/v1/customers", map[string]any{"customer": buildCustomerPayload(state)})
		if err != nil {
			return "", err
		}
		var resp wixCustomerResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.Customer == nil || resp.Customer.ID == "" {
			return "", fmt.Errorf("%w: create response carried no customer id", syncdomain.ErrPlatformUnavailable)
		}
		return resp.Customer.ID, nil

	case syncdomain.EntityTypeInventoryLevel:
		sku := attrString(state, "sku")
		if sku == "" {
			return "", fmt.Errorf("%w: inventory level carries no sku", syncdomain.ErrPlatformRejected)
		}
		products, err := a.queryProducts(ctx, "", 0, 1, sku)
		if err != nil {
			return "", err
		}
		if len(products) == 0 {
			return "", fmt.Errorf("%w: no product with sku %q", syncdomain.ErrRemoteNotFound, sku)
		}
		if err := a.patchInventory(ctx, products[0].ID, state); err != nil {
			return "", err
		}
		return products[0].ID, nil

	case syncdomain.EntityTypeOrder:
		return "", fmt.Errorf("%w: orders are created by the storefront", syncdomain.ErrPlatformRejected)

	default:
		return "", syncdomain.ErrInvalidEntityType
	}
}

// Update overwrites an existing record. The only order transition the
// platform accepts from outside is cancellation.
func (a *WixAdapter) Update(ctx context.Context, entityType syncdomain.EntityType, remoteID string, state *syncdomain.EntityState) error {
	switch entityType {
	case syncdomain.EntityTypeProduct:
		_, err := a.doRequest(ctx, http.MethodPatch, "/stores/v1/products/"+remoteID, map[string]any{"product": buildProductPayload(state)})
		return err

	case syncdomain.EntityTypeCustomer:
		_, err := a.doRequest(ctx, http.MethodPatch, "/stores/v1/customers/"+remoteID, map[string]any{"customer": buildCustomerPayload(state)})
		return err

	case syncdomain.EntityTypeInventoryLevel:
		return a.patchInventory(ctx, remoteID, state)

	case syncdomain.EntityTypeOrder:
		if state.Deleted || attrString(state, "status") == "CANCELLED" {
			return a.cancelOrder(ctx, remoteID)
		}
		return fmt.Errorf("%w: order contents are managed by the storefront", syncdomain.ErrPlatformRejected)

	default:
		return syncdomain.ErrInvalidEntityType
	}
}

// Delete removes a record. Orders cancel instead of deleting, inventory
// levels zero out, and customers cannot be removed through the API at
// all, which keeps a locally deactivated customer visible on the remote
// side until an operator intervenes there.
func (a *WixAdapter) Delete(ctx context.Context, entityType syncdomain.EntityType, remoteID string) error {
	switch entityType {
	case syncdomain.EntityTypeProduct:
		_, err := a.doRequest(ctx, http.MethodDelete, "/stores/v1/products/"+remoteID, nil)
		return err

	case syncdomain.EntityTypeOrder:
		return a.cancelOrder(ctx, remoteID)

	case syncdomain.EntityTypeInventoryLevel:
		_, err := a.doRequest(ctx, http.MethodPatch, "/stores/v1/inventoryItems/product/"+remoteID, map[string]any{
			"inventoryItem": map[string]any{
				"trackQuantity": true,
				"quantity":      int64(0),
			},
		})
		return err

	case syncdomain.EntityTypeCustomer:
		return fmt.Errorf("%w: customer records cannot be deleted through the storefront API", syncdomain.ErrPlatformRejected)

	default:
		return syncdomain.ErrInvalidEntityType
	}
}

func (a *WixAdapter) patchInventory(ctx context.Context, productID string, state *syncdomain.EntityState) error {
	quantity := attrInt(state, "quantity")
	if quantity < 0 {
		// The storefront never sees negative stock
		quantity = 0
	}
	_, err := a.doRequest(ctx, http.MethodPatch, "/stores/v1/inventoryItems/product/"+productID, map[string]any{
		"inventoryItem": map[string]any{
			"trackQuantity": attrBool(state, "track_inventory", true),
			"quantity":      quantity,
		},
	})
	return err
}

func (a *WixAdapter) cancelOrder(ctx context.Context, orderID string) error {
	_, err := a.doRequest(ctx, http.MethodPost, "/stores/v1/orders/"+orderID+"/cancel", nil)
	return err
}

// ---------------------------------------------------------------------------
// Request Plumbing
// ---------------------------------------------------------------------------

// wixResponse is the digest of one HTTP exchange
type wixResponse struct {
	status     int
	body       []byte
	retryAfter string
}

// doRequest performs one API call. A 401 gets one token refresh and one
// replay; a second 401 means the credential itself is bad.
func (a *WixAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wix: failed to marshal request: %w", err)
		}
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: credential unavailable: %v", syncdomain.ErrPlatformRejected, err)
	}

	for replayed := false; ; replayed = true {
		resp, err := a.send(ctx, method, path, bodyBytes, token)
		if err != nil {
			return nil, err
		}
		if resp.status != http.StatusUnauthorized {
			return classifyResponse(resp)
		}
		if replayed {
			return nil, fmt.Errorf("%w: HTTP 401 after token refresh", syncdomain.ErrPlatformRejected)
		}
		token, err = a.tokens.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: token refresh failed: %v", syncdomain.ErrPlatformRejected, err)
		}
	}
}

// send executes a single HTTP attempt behind the rate gate
func (a *WixAdapter) send(ctx context.Context, method, path string, body []byte, token string) (*wixResponse, error) {
	if err := a.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("wix: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("wix-site-id", a.config.SiteID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syncdomain.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxWixResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", syncdomain.ErrPlatformUnavailable, err)
	}

	return &wixResponse{
		status:     resp.StatusCode,
		body:       respBody,
		retryAfter: resp.Header.Get("Retry-After"),
	}, nil
}

// classifyResponse maps an HTTP exchange onto the domain sentinels:
// server-side trouble is retryable, everything else the platform refused
// is permanent.
func classifyResponse(resp *wixResponse) ([]byte, error) {
	switch {
	case resp.status < http.StatusBadRequest:
		return resp.body, nil
	case resp.status == http.StatusNotFound:
		return nil, syncdomain.ErrRemoteNotFound
	case resp.status == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP 429, retry after %s", syncdomain.ErrRateLimited, retryAfterDelay(resp.retryAfter))
	case resp.status >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: HTTP %d", syncdomain.ErrPlatformUnavailable, resp.status)
	default:
		if msg := compactBody(resp.body); msg != "" {
			return nil, fmt.Errorf("%w: HTTP %d: %s", syncdomain.ErrPlatformRejected, resp.status, msg)
		}
		return nil, fmt.Errorf("%w: HTTP %d", syncdomain.ErrPlatformRejected, resp.status)
	}
}

// retryAfterDelay parses a Retry-After header given in seconds
func retryAfterDelay(header string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}

// compactBody reduces an error response body to a short single line
func compactBody(body []byte) string {
	msg := strings.Join(strings.Fields(string(body)), " ")
	if len(msg) > maxErrorBodySize {
		msg = msg[:maxErrorBodySize] + "..."
	}
	return msg
}

// ---------------------------------------------------------------------------
// Normalizers
// ---------------------------------------------------------------------------

// productState converts a Wix product into a normalized snapshot
func productState(p *wixProduct) *syncdomain.EntityState {
	attrs := map[string]any{
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"active":      p.Visible,
	}
	if p.PriceData != nil {
		attrs["price"] = p.PriceData.Price
		if p.PriceData.Currency != "" {
			attrs["currency"] = p.PriceData.Currency
		}
	}
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeProduct,
		Origin:     syncdomain.OriginRemote,
		ID:         p.ID,
		Attributes: attrs,
		ModifiedAt: parseWixTime(p.LastUpdated),
	}
}

// inventoryState converts a product's stock block into a normalized
// inventory snapshot keyed by the owning product's id.
func inventoryState(p *wixProduct) *syncdomain.EntityState {
	attrs := map[string]any{
		"sku":             p.SKU,
		"quantity":        int64(0),
		"track_inventory": false,
	}
	if p.Inventory != nil {
		attrs["quantity"] = p.Inventory.Quantity
		attrs["track_inventory"] = p.Inventory.TrackQuantity
	}
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeInventoryLevel,
		Origin:     syncdomain.OriginRemote,
		ID:         p.ID,
		Attributes: attrs,
		ModifiedAt: parseWixTime(p.LastUpdated),
	}
}

// customerState converts a Wix contact into a normalized snapshot
func customerState(c *wixCustomer) *syncdomain.EntityState {
	attrs := map[string]any{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
	}
	if len(c.Emails) > 0 {
		attrs["email"] = c.Emails[0]
	}
	if len(c.Phones) > 0 {
		attrs["phone"] = c.Phones[0]
	}
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeCustomer,
		Origin:     syncdomain.OriginRemote,
		ID:         c.ID,
		Attributes: attrs,
		ModifiedAt: parseWixTime(firstTimestamp(c.LastUpdated, c.UpdatedDate)),
	}
}

// orderState converts a Wix order into a normalized snapshot
func orderState(o *wixOrder) *syncdomain.EntityState {
	status := mapWixOrderStatus(o.PaymentStatus, o.FulfillmentStatus)

	lines := make([]any, 0, len(o.LineItems))
	for _, item := range o.LineItems {
		lines = append(lines, map[string]any{
			"sku":      item.SKU,
			"name":     item.Name,
			"quantity": item.Quantity,
			"price":    item.Price,
		})
	}

	attrs := map[string]any{
		"status":     status,
		"currency":   o.Currency,
		"line_items": lines,
		"total":      decimal.Zero,
	}
	if number := o.OrderNumber.String(); number != "" {
		attrs["number"] = number
	}
	if o.Totals != nil {
		attrs["total"] = o.Totals.Total
	}
	if email := o.BuyerInfo.primaryEmail(); email != "" {
		attrs["customer_email"] = email
	}
	if placed := parseWixTime(o.DateCreated); !placed.IsZero() {
		attrs["placed_at"] = placed
	}

	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeOrder,
		Origin:     syncdomain.OriginRemote,
		ID:         o.ID,
		Attributes: attrs,
		ModifiedAt: parseWixTime(firstTimestamp(o.LastUpdated, o.DateCreated)),
		Deleted:    status == "CANCELLED",
	}
}

// buildProductPayload renders a normalized snapshot into the catalog's
// write format. Prices go out as strings to avoid float rounding on the
// platform side.
func buildProductPayload(state *syncdomain.EntityState) map[string]any {
	priceData := map[string]any{
		"price": attrDecimal(state, "price").String(),
	}
	if currency := attrString(state, "currency"); currency != "" {
		priceData["currency"] = currency
	}
	return map[string]any{
		"name":           attrString(state, "name"),
		"description":    attrString(state, "description"),
		"sku":            attrString(state, "sku"),
		"visible":        attrBool(state, "active", true) && !state.Deleted,
		"productType":    "physical",
		"manageVariants": false,
		"priceData":      priceData,
	}
}

// buildCustomerPayload renders a normalized snapshot into the contact
// write format. Email and phone travel as single-element arrays.
func buildCustomerPayload(state *syncdomain.EntityState) map[string]any {
	payload := map[string]any{
		"firstName": attrString(state, "first_name"),
		"lastName":  attrString(state, "last_name"),
	}
	if email := attrString(state, "email"); email != "" {
		payload["emails"] = []string{email}
	}
	if phone := attrString(state, "phone"); phone != "" {
		payload["phones"] = []string{phone}
	}
	return payload
}

// ---------------------------------------------------------------------------
// Status Mapping
// ---------------------------------------------------------------------------

// mapWixOrderStatus folds the platform's payment and fulfillment pair
// into the single order status the local system tracks.
func mapWixOrderStatus(paymentStatus, fulfillmentStatus string) string {
	switch strings.ToUpper(fulfillmentStatus) {
	case "CANCELED", "CANCELLED":
		return "CANCELLED"
	case "FULFILLED":
		return "FULFILLED"
	}
	switch strings.ToUpper(paymentStatus) {
	case "PAID", "PARTIALLY_PAID":
		return "PAID"
	case "FULLY_REFUNDED", "PARTIALLY_REFUNDED":
		return "REFUNDED"
	}
	return "NEW"
}

// ---------------------------------------------------------------------------
// Attribute Extraction
// ---------------------------------------------------------------------------

// Snapshots arrive from webhook decoding as well as from live reads, so
// attribute values can be native Go types or whatever encoding/json
// produced. The helpers below coerce the shapes that occur in practice.

func attrString(state *syncdomain.EntityState, key string) string {
	if s, ok := state.Attr(key).(string); ok {
		return s
	}
	return ""
}

func attrBool(state *syncdomain.EntityState, key string, fallback bool) bool {
	if b, ok := state.Attr(key).(bool); ok {
		return b
	}
	return fallback
}

func attrDecimal(state *syncdomain.EntityState, key string) decimal.Decimal {
	switch v := state.Attr(key).(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func attrInt(state *syncdomain.EntityState, key string) int64 {
	switch v := state.Attr(key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case decimal.Decimal:
		return v.IntPart()
	}
	return 0
}

// maxTimestamp returns the later of two RFC3339 timestamps
func maxTimestamp(a, b string) string {
	if parseWixTime(b).After(parseWixTime(a)) {
		return b
	}
	return a
}

// firstTimestamp returns the first non-empty timestamp string
func firstTimestamp(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ensure WixAdapter implements the RemotePlatform interface
var _ syncdomain.RemotePlatform = (*WixAdapter)(nil)
