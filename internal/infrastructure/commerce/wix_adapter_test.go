package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Cursor Tests
// ---------------------------------------------------------------------------

func TestDecodeCursor(t *testing.T) {
	t.Run("empty token starts from the beginning", func(t *testing.T) {
		assert.Equal(t, wixCursor{}, decodeCursor(""))
	})

	t.Run("round trip", func(t *testing.T) {
		cur := wixCursor{Since: "2024-05-01T10:00:00Z", Offset: 40, Mark: "2024-05-01T12:00:00Z"}
		assert.Equal(t, cur, decodeCursor(cur.encode()))
	})

	t.Run("damaged token restarts the listing", func(t *testing.T) {
		assert.Equal(t, wixCursor{}, decodeCursor("{not json"))
	})
}

func TestWixCursor_Advance(t *testing.T) {
	t1 := "2024-05-01T10:00:00Z"
	t2 := "2024-05-01T11:00:00Z"

	tests := []struct {
		name     string
		cursor   wixCursor
		fetched  int
		pageSize int
		pageMax  string
		want     wixCursor
		wantMore bool
	}{
		{
			name:     "full page continues the generation",
			cursor:   wixCursor{Since: t1, Offset: 0},
			fetched:  2,
			pageSize: 2,
			pageMax:  t2,
			want:     wixCursor{Since: t1, Offset: 2, Mark: t2},
			wantMore: true,
		},
		{
			name:     "short page reseeds the watermark",
			cursor:   wixCursor{Since: t1, Offset: 2, Mark: t2},
			fetched:  1,
			pageSize: 2,
			pageMax:  "",
			want:     wixCursor{Since: t2},
			wantMore: true,
		},
		{
			name:     "empty first page means nothing changed",
			cursor:   wixCursor{Since: t2, Offset: 0},
			fetched:  0,
			pageSize: 2,
			pageMax:  "",
			wantMore: false,
		},
		{
			name:     "empty tail page falls back to the generation watermark",
			cursor:   wixCursor{Since: t1, Offset: 4},
			fetched:  0,
			pageSize: 2,
			pageMax:  "",
			want:     wixCursor{Since: t1},
			wantMore: true,
		},
		{
			name:     "no timestamps anywhere ends the listing",
			cursor:   wixCursor{Offset: 4},
			fetched:  1,
			pageSize: 2,
			pageMax:  "",
			wantMore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, more := tt.cursor.advance(tt.fetched, tt.pageSize, tt.pageMax)
			assert.Equal(t, tt.wantMore, more)
			if tt.wantMore {
				assert.Equal(t, tt.want, next)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Listing Tests
// ---------------------------------------------------------------------------

func TestWixAdapter_ListChanged_WalksPagesUntilExhaustion(t *testing.T) {
	catalog := []wixProduct{
		{ID: "wp-1", SKU: "SKU-1", Name: "Desk", Visible: true, LastUpdated: "2024-05-01T10:00:00Z"},
		{ID: "wp-2", SKU: "SKU-2", Name: "Chair", Visible: true, LastUpdated: "2024-05-01T11:00:00Z"},
		{ID: "wp-3", SKU: "SKU-3", Name: "Lamp", Visible: false, LastUpdated: "2024-05-01T12:00:00Z"},
	}

	server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/stores/v1/products/query", r.URL.Path)
		require.Equal(t, "test-api-key", r.Header.Get("Authorization"))
		require.Equal(t, "site-1", r.Header.Get("wix-site-id"))

		limit, offset, since := decodeQueryRequest(t, r)

		matched := make([]wixProduct, 0, len(catalog))
		for _, p := range catalog {
			if since == "" || parseWixTime(p.LastUpdated).After(parseWixTime(since)) {
				matched = append(matched, p)
			}
		}
		if offset > len(matched) {
			offset = len(matched)
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		writeJSON(t, w, wixProductListResponse{Products: matched[offset:end]})
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))

	var (
		seen      []string
		cursor    string
		persisted string
	)
	for {
		records, next, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeProduct, cursor, 2)
		require.NoError(t, err)
		for _, rec := range records {
			seen = append(seen, rec.ID)
		}
		if next == "" {
			break
		}
		persisted = next
		cursor = next
	}

	assert.Equal(t, []string{"wp-1", "wp-2", "wp-3"}, seen)

	// The last persisted token starts the next incremental generation at
	// the highest lastUpdated observed.
	require.NotEmpty(t, persisted)
	assert.Equal(t, wixCursor{Since: "2024-05-01T12:00:00Z"}, decodeCursor(persisted))

	// A quiet poll from that token makes one call and reports exhaustion.
	records, next, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeProduct, persisted, 2)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, next)
}

func TestWixAdapter_ListChanged_ForwardsWatermarkFilter(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _, since := decodeQueryRequest(t, r)
		assert.Equal(t, "2024-05-01T10:00:00Z", since)
		writeJSON(t, w, wixProductListResponse{})
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	cursor := wixCursor{Since: "2024-05-01T10:00:00Z"}.encode()

	records, next, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeProduct, cursor, 2)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, next)
}

func TestWixAdapter_ListChanged_NormalizesProducts(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, wixProductListResponse{Products: []wixProduct{
			{
				ID:          "wp-1",
				Name:        "Standing Desk",
				Description: "Oak, 120cm",
				SKU:         "DESK-120",
				Visible:     true,
				PriceData:   &wixPriceData{Currency: "USD", Price: decimal.RequireFromString("499.90")},
				LastUpdated: "2024-05-01T10:00:00Z",
			},
		}})
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	records, _, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeProduct, "", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	state := records[0].State
	require.NotNil(t, state)
	assert.Equal(t, syncdomain.EntityTypeProduct, state.EntityType)
	assert.Equal(t, syncdomain.OriginRemote, state.Origin)
	assert.Equal(t, "wp-1", state.ID)
	assert.Equal(t, "DESK-120", state.Attr("sku"))
	assert.Equal(t, "Standing Desk", state.Attr("name"))
	assert.Equal(t, "USD", state.Attr("currency"))
	assert.Equal(t, true, state.Attr("active"))
	assert.True(t, decimal.RequireFromString("499.90").Equal(state.Attr("price").(decimal.Decimal)))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), state.ModifiedAt.UTC())
	assert.False(t, state.Deleted)
}

func TestWixAdapter_ListChanged_InventoryRidesOnProducts(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stores/v1/products/query", r.URL.Path)
		writeJSON(t, w, wixProductListResponse{Products: []wixProduct{
			{ID: "wp-1", SKU: "DESK-120", Inventory: &wixInventoryInfo{TrackQuantity: true, Quantity: 14}, LastUpdated: "2024-05-01T10:00:00Z"},
			{ID: "wp-2", SKU: "CHAIR-01", LastUpdated: "2024-05-01T11:00:00Z"},
		}})
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	records, next, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeInventoryLevel, "", 2)
	require.NoError(t, err)

	// Untracked products are skipped in the records but still advance the page.
	require.Len(t, records, 1)
	assert.Equal(t, "wp-1", records[0].ID)
	assert.Equal(t, "DESK-120", records[0].State.Attr("sku"))
	assert.Equal(t, int64(14), records[0].State.Attr("quantity"))
	assert.Equal(t, true, records[0].State.Attr("track_inventory"))

	assert.Equal(t, 2, decodeCursor(next).Offset)
}

func TestWixAdapter_ListChanged_Orders(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stores/v1/orders/query", r.URL.Path)
		writeJSON(t, w, wixOrderListResponse{Orders: []wixOrder{
			{
				ID:            "wo-1",
				OrderNumber:   json.Number("10027"),
				BuyerInfo:     &wixBuyerInfo{ID: "wc-9", Email: "jo@example.com"},
				Totals:        &wixOrderTotals{Total: decimal.RequireFromString("129.80")},
				Currency:      "USD",
				PaymentStatus: "PAID",
				LineItems: []wixLineItem{
					{SKU: "DESK-120", Name: "Standing Desk", Quantity: 1, Price: decimal.RequireFromString("99.90")},
				},
				DateCreated: "2024-05-01T09:00:00Z",
				LastUpdated: "2024-05-01T10:00:00Z",
			},
			{
				ID:                "wo-2",
				OrderNumber:       json.Number("10028"),
				FulfillmentStatus: "CANCELED",
				DateCreated:       "2024-05-01T09:30:00Z",
			},
		}})
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	records, _, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeOrder, "", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	paid := records[0].State
	assert.Equal(t, "10027", paid.Attr("number"))
	assert.Equal(t, "PAID", paid.Attr("status"))
	assert.Equal(t, "jo@example.com", paid.Attr("customer_email"))
	assert.True(t, decimal.RequireFromString("129.80").Equal(paid.Attr("total").(decimal.Decimal)))
	lines, ok := paid.Attr("line_items").([]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "DESK-120", lines[0].(map[string]any)["sku"])
	assert.False(t, records[0].Deleted)

	cancelled := records[1]
	assert.True(t, cancelled.Deleted)
	assert.Equal(t, "CANCELLED", cancelled.State.Attr("status"))
	assert.True(t, cancelled.State.Deleted)
}

func TestWixAdapter_ListChanged_UnknownEntityType(t *testing.T) {
	adapter := newTestWixAdapter("http://unused.invalid", &openGate{}, NewStaticTokenSource("test-api-key"))
	_, _, err := adapter.ListChanged(context.Background(), syncdomain.EntityType("GIFT_CARD"), "", 10)
	assert.ErrorIs(t, err, syncdomain.ErrInvalidEntityType)
}

// ---------------------------------------------------------------------------
// Single-Record Operation Tests
// ---------------------------------------------------------------------------

func TestWixAdapter_Get(t *testing.T) {
	t.Run("product", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/stores/v1/products/wp-1", r.URL.Path)
			writeJSON(t, w, wixProductResponse{Product: &wixProduct{
				ID: "wp-1", Name: "Desk", SKU: "DESK-120", Visible: true,
				PriceData: &wixPriceData{Currency: "USD", Price: decimal.RequireFromString("499.90")},
			}})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state, err := adapter.Get(context.Background(), syncdomain.EntityTypeProduct, "wp-1")
		require.NoError(t, err)
		assert.Equal(t, "DESK-120", state.Attr("sku"))
	})

	t.Run("inventory level reads through the product", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/stores/v1/products/wp-1", r.URL.Path)
			writeJSON(t, w, wixProductResponse{Product: &wixProduct{
				ID: "wp-1", SKU: "DESK-120",
				Inventory: &wixInventoryInfo{TrackQuantity: true, Quantity: 3},
			}})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state, err := adapter.Get(context.Background(), syncdomain.EntityTypeInventoryLevel, "wp-1")
		require.NoError(t, err)
		assert.Equal(t, syncdomain.EntityTypeInventoryLevel, state.EntityType)
		assert.Equal(t, int64(3), state.Attr("quantity"))
	})

	t.Run("missing record", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		_, err := adapter.Get(context.Background(), syncdomain.EntityTypeCustomer, "wc-404")
		assert.ErrorIs(t, err, syncdomain.ErrRemoteNotFound)
	})

	t.Run("server error is retryable", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		_, err := adapter.Get(context.Background(), syncdomain.EntityTypeOrder, "wo-1")
		assert.ErrorIs(t, err, syncdomain.ErrPlatformUnavailable)
	})
}

func TestWixAdapter_Create(t *testing.T) {
	t.Run("product", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/stores/v1/products", r.URL.Path)

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			product, ok := req["product"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "Standing Desk", product["name"])
			assert.Equal(t, "DESK-120", product["sku"])
			assert.Equal(t, true, product["visible"])
			assert.Equal(t, "physical", product["productType"])
			assert.Equal(t, false, product["manageVariants"])
			priceData := product["priceData"].(map[string]any)
			assert.Equal(t, "499.9", priceData["price"])
			assert.Equal(t, "USD", priceData["currency"])

			writeJSON(t, w, wixProductResponse{Product: &wixProduct{ID: "wp-new"}})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		id, err := adapter.Create(context.Background(), syncdomain.EntityTypeProduct, productEntityState())
		require.NoError(t, err)
		assert.Equal(t, "wp-new", id)
	})

	t.Run("customer", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/stores/v1/customers", r.URL.Path)

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			customer := req["customer"].(map[string]any)
			assert.Equal(t, "Jo", customer["firstName"])
			assert.Equal(t, []any{"jo@example.com"}, customer["emails"])

			writeJSON(t, w, wixCustomerResponse{Customer: &wixCustomer{ID: "wc-new"}})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeCustomer,
			Origin:     syncdomain.OriginLocal,
			ID:         "local-1",
			Attributes: map[string]any{"email": "jo@example.com", "first_name": "Jo", "last_name": "Doe"},
		}
		id, err := adapter.Create(context.Background(), syncdomain.EntityTypeCustomer, state)
		require.NoError(t, err)
		assert.Equal(t, "wc-new", id)
	})

	t.Run("inventory level links through the product sku", func(t *testing.T) {
		var patched atomic.Int32
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/stores/v1/products/query":
				var req map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				filter := req["query"].(map[string]any)["filter"].(map[string]any)
				assert.Equal(t, "DESK-120", filter["sku"])
				writeJSON(t, w, wixProductListResponse{Products: []wixProduct{{ID: "wp-1", SKU: "DESK-120"}}})
			case "/stores/v1/inventoryItems/product/wp-1":
				require.Equal(t, http.MethodPatch, r.Method)
				patched.Add(1)
				var req map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				item := req["inventoryItem"].(map[string]any)
				assert.Equal(t, true, item["trackQuantity"])
				assert.EqualValues(t, 7, item["quantity"])
				writeJSON(t, w, map[string]any{})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeInventoryLevel,
			Origin:     syncdomain.OriginLocal,
			ID:         "local-inv",
			Attributes: map[string]any{"sku": "DESK-120", "quantity": int64(7), "track_inventory": true},
		}
		id, err := adapter.Create(context.Background(), syncdomain.EntityTypeInventoryLevel, state)
		require.NoError(t, err)
		assert.Equal(t, "wp-1", id)
		assert.EqualValues(t, 1, patched.Load())
	})

	t.Run("inventory level with unknown sku", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, wixProductListResponse{})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeInventoryLevel,
			Origin:     syncdomain.OriginLocal,
			ID:         "local-inv",
			Attributes: map[string]any{"sku": "GONE-1", "quantity": int64(2)},
		}
		_, err := adapter.Create(context.Background(), syncdomain.EntityTypeInventoryLevel, state)
		assert.ErrorIs(t, err, syncdomain.ErrRemoteNotFound)
	})

	t.Run("orders are storefront-owned", func(t *testing.T) {
		var calls atomic.Int32
		server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusOK)
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		_, err := adapter.Create(context.Background(), syncdomain.EntityTypeOrder, &syncdomain.EntityState{})
		assert.ErrorIs(t, err, syncdomain.ErrPlatformRejected)
		assert.EqualValues(t, 0, calls.Load())
	})
}

func TestWixAdapter_Update(t *testing.T) {
	t.Run("product", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "/stores/v1/products/wp-1", r.URL.Path)
			writeJSON(t, w, wixProductResponse{Product: &wixProduct{ID: "wp-1"}})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		err := adapter.Update(context.Background(), syncdomain.EntityTypeProduct, "wp-1", productEntityState())
		assert.NoError(t, err)
	})

	t.Run("inventory clamps negative stock at zero", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/stores/v1/inventoryItems/product/wp-1", r.URL.Path)
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			item := req["inventoryItem"].(map[string]any)
			assert.EqualValues(t, 0, item["quantity"])
			writeJSON(t, w, map[string]any{})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeInventoryLevel,
			Origin:     syncdomain.OriginLocal,
			ID:         "local-inv",
			Attributes: map[string]any{"sku": "DESK-120", "quantity": int64(-5)},
		}
		err := adapter.Update(context.Background(), syncdomain.EntityTypeInventoryLevel, "wp-1", state)
		assert.NoError(t, err)
	})

	t.Run("cancelled order maps to the cancel endpoint", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/stores/v1/orders/wo-1/cancel", r.URL.Path)
			writeJSON(t, w, map[string]any{})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeOrder,
			Origin:     syncdomain.OriginLocal,
			ID:         "local-9",
			Attributes: map[string]any{"status": "CANCELLED"},
		}
		assert.NoError(t, adapter.Update(context.Background(), syncdomain.EntityTypeOrder, "wo-1", state))
	})

	t.Run("other order edits are rejected", func(t *testing.T) {
		adapter := newTestWixAdapter("http://unused.invalid", &openGate{}, NewStaticTokenSource("test-api-key"))
		state := &syncdomain.EntityState{
			EntityType: syncdomain.EntityTypeOrder,
			Origin:     syncdomain.OriginLocal,
			ID:         "local-9",
			Attributes: map[string]any{"status": "PAID"},
		}
		err := adapter.Update(context.Background(), syncdomain.EntityTypeOrder, "wo-1", state)
		assert.ErrorIs(t, err, syncdomain.ErrPlatformRejected)
	})
}

func TestWixAdapter_Delete(t *testing.T) {
	t.Run("product", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			require.Equal(t, "/stores/v1/products/wp-1", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		assert.NoError(t, adapter.Delete(context.Background(), syncdomain.EntityTypeProduct, "wp-1"))
	})

	t.Run("order cancels", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/stores/v1/orders/wo-1/cancel", r.URL.Path)
			writeJSON(t, w, map[string]any{})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		assert.NoError(t, adapter.Delete(context.Background(), syncdomain.EntityTypeOrder, "wo-1"))
	})

	t.Run("inventory zeroes out", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/stores/v1/inventoryItems/product/wp-1", r.URL.Path)
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.EqualValues(t, 0, req["inventoryItem"].(map[string]any)["quantity"])
			writeJSON(t, w, map[string]any{})
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		assert.NoError(t, adapter.Delete(context.Background(), syncdomain.EntityTypeInventoryLevel, "wp-1"))
	})

	t.Run("customers cannot be deleted", func(t *testing.T) {
		var calls atomic.Int32
		server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusOK)
		})
		defer server.Close()

		adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
		err := adapter.Delete(context.Background(), syncdomain.EntityTypeCustomer, "wc-1")
		assert.ErrorIs(t, err, syncdomain.ErrPlatformRejected)
		assert.EqualValues(t, 0, calls.Load())
	})
}

// ---------------------------------------------------------------------------
// Failure Classification Tests
// ---------------------------------------------------------------------------

func TestWixAdapter_RateLimitResponse(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	_, err := adapter.Get(context.Background(), syncdomain.EntityTypeProduct, "wp-1")
	require.ErrorIs(t, err, syncdomain.ErrRateLimited)
	assert.Contains(t, err.Error(), "retry after 2m0s")
}

func TestWixAdapter_RateGateRefusal(t *testing.T) {
	var calls atomic.Int32
	server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, closedGate{}, NewStaticTokenSource("test-api-key"))
	_, err := adapter.Get(context.Background(), syncdomain.EntityTypeProduct, "wp-1")
	assert.ErrorIs(t, err, syncdomain.ErrRateLimited)
	assert.EqualValues(t, 0, calls.Load(), "refused calls must never reach the platform")
}

func TestWixAdapter_TransportFailure(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server.Close() // Connection refused from here on

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	_, err := adapter.Get(context.Background(), syncdomain.EntityTypeProduct, "wp-1")
	assert.ErrorIs(t, err, syncdomain.ErrPlatformUnavailable)
}

func TestWixAdapter_RejectionCarriesResponseDetail(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "sku already exists"}`))
	})
	defer server.Close()

	adapter := newTestWixAdapter(server.URL, &openGate{}, NewStaticTokenSource("test-api-key"))
	_, err := adapter.Create(context.Background(), syncdomain.EntityTypeProduct, productEntityState())
	require.ErrorIs(t, err, syncdomain.ErrPlatformRejected)
	assert.Contains(t, err.Error(), "sku already exists")
}

func TestWixAdapter_UnauthorizedRefreshesOnce(t *testing.T) {
	t.Run("fresh credential replays the call", func(t *testing.T) {
		server := createMockWixServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "fresh-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(t, w, wixProductResponse{Product: &wixProduct{ID: "wp-1", SKU: "DESK-120"}})
		})
		defer server.Close()

		tokens := &rotatingTokens{current: "stale-key", fresh: "fresh-key"}
		adapter := newTestWixAdapter(server.URL, &openGate{}, tokens)

		state, err := adapter.Get(context.Background(), syncdomain.EntityTypeProduct, "wp-1")
		require.NoError(t, err)
		assert.Equal(t, "DESK-120", state.Attr("sku"))
		assert.Equal(t, 1, tokens.refreshes)
	})

	t.Run("second rejection is permanent", func(t *testing.T) {
		var calls atomic.Int32
		server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		})
		defer server.Close()

		tokens := &rotatingTokens{current: "revoked", fresh: "revoked"}
		adapter := newTestWixAdapter(server.URL, &openGate{}, tokens)

		_, err := adapter.Get(context.Background(), syncdomain.EntityTypeProduct, "wp-1")
		require.ErrorIs(t, err, syncdomain.ErrPlatformRejected)
		assert.EqualValues(t, 2, calls.Load(), "exactly one replay after the refresh")
		assert.Equal(t, 1, tokens.refreshes)
	})
}

func TestWixAdapter_EveryCallPassesTheRateGate(t *testing.T) {
	server := createMockWixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, wixProductListResponse{})
	})
	defer server.Close()

	gate := &openGate{}
	adapter := newTestWixAdapter(server.URL, gate, NewStaticTokenSource("test-api-key"))

	_, _, err := adapter.ListChanged(context.Background(), syncdomain.EntityTypeProduct, "", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gate.acquired.Load())
}

// ---------------------------------------------------------------------------
// Status Mapping Tests
// ---------------------------------------------------------------------------

func TestMapWixOrderStatus(t *testing.T) {
	tests := []struct {
		payment     string
		fulfillment string
		want        string
	}{
		{"PAID", "NOT_FULFILLED", "PAID"},
		{"PARTIALLY_PAID", "", "PAID"},
		{"PAID", "FULFILLED", "FULFILLED"},
		{"UNPAID", "CANCELED", "CANCELLED"},
		{"PAID", "CANCELLED", "CANCELLED"},
		{"FULLY_REFUNDED", "NOT_FULFILLED", "REFUNDED"},
		{"UNPAID", "", "NEW"},
		{"", "", "NEW"},
	}

	for _, tt := range tests {
		t.Run(tt.payment+"/"+tt.fulfillment, func(t *testing.T) {
			assert.Equal(t, tt.want, mapWixOrderStatus(tt.payment, tt.fulfillment))
		})
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// openGate admits every caller and counts acquisitions
type openGate struct {
	acquired atomic.Int32
}

func (g *openGate) Acquire(_ context.Context) error {
	g.acquired.Add(1)
	return nil
}

// closedGate refuses every caller
type closedGate struct{}

func (closedGate) Acquire(_ context.Context) error {
	return fmt.Errorf("%w: outbound budget exhausted", syncdomain.ErrRateLimited)
}

// rotatingTokens serves a stale credential until refreshed
type rotatingTokens struct {
	current   string
	fresh     string
	refreshes int
}

func (s *rotatingTokens) Token(_ context.Context) (string, error) {
	return s.current, nil
}

func (s *rotatingTokens) Refresh(_ context.Context) (string, error) {
	s.refreshes++
	s.current = s.fresh
	return s.current, nil
}

func newTestWixAdapter(serverURL string, gate syncdomain.RateGate, tokens syncdomain.TokenSource) *WixAdapter {
	cfg := &config.WixConfig{
		BaseURL:  serverURL,
		SiteID:   "site-1",
		PageSize: 2,
		Timeout:  5 * time.Second,
	}
	return NewWixAdapter(cfg, tokens, gate)
}

func createMockWixServer(_ *testing.T, handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

// decodeQueryRequest pulls limit, offset, and the lastUpdated watermark
// out of a query endpoint request body.
func decodeQueryRequest(t *testing.T, r *http.Request) (limit, offset int, since string) {
	t.Helper()
	var req map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	query, ok := req["query"].(map[string]any)
	require.True(t, ok)
	limit = int(query["limit"].(float64))
	offset = int(query["offset"].(float64))
	if filter, ok := query["filter"].(map[string]any); ok {
		if lastUpdated, ok := filter["lastUpdated"].(map[string]any); ok {
			since, _ = lastUpdated["$gt"].(string)
		}
	}
	return limit, offset, since
}

func productEntityState() *syncdomain.EntityState {
	return &syncdomain.EntityState{
		EntityType: syncdomain.EntityTypeProduct,
		Origin:     syncdomain.OriginLocal,
		ID:         "local-1",
		Attributes: map[string]any{
			"sku":         "DESK-120",
			"name":        "Standing Desk",
			"description": "Oak, 120cm",
			"price":       decimal.RequireFromString("499.90"),
			"currency":    "USD",
			"active":      true,
		},
	}
}
