package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// EntityState is a normalized snapshot of one side's current content for
// an entity. Adapters translate their native representations into this
// form; the resolver only ever compares EntityStates.
type EntityState struct {
	// EntityType is the kind of business entity
	EntityType EntityType
	// Origin is the side this snapshot was taken from
	Origin Origin
	// ID is the entity's identifier on the origin side
	ID string
	// Attributes holds the normalized, side-agnostic content fields
	Attributes map[string]any
	// ModifiedAt is the origin side's last modification time
	ModifiedAt time.Time
	// Deleted marks a snapshot representing a removed entity
	Deleted bool
}

// Fingerprint returns a stable content hash of the normalized attributes.
// Two states with equal content always hash identically: map ordering is
// irrelevant and numeric values are reduced to canonical decimal strings,
// so 19.90 and 19.9000 fingerprint the same.
func (s *EntityState) Fingerprint() string {
	if s == nil {
		return ""
	}
	if s.Deleted {
		// A deleted entity has no content to hash; the marker keeps a
		// delete distinguishable from an empty attribute set.
		return "deleted"
	}
	return FingerprintAttributes(s.Attributes)
}

// Attr returns a single attribute value, nil when absent
func (s *EntityState) Attr(key string) any {
	if s == nil || s.Attributes == nil {
		return nil
	}
	return s.Attributes[key]
}

// FingerprintAttributes hashes an attribute map into lowercase hex SHA-256
// over its canonical JSON encoding.
func FingerprintAttributes(attrs map[string]any) string {
	canonical, err := json.Marshal(canonicalize(attrs))
	if err != nil {
		// Attributes always originate from JSON-compatible values; an
		// unmarshalable value indicates an adapter bug. Hash the error
		// text so the fingerprint still changes rather than colliding.
		canonical = []byte(err.Error())
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalize rewrites a value tree into a form whose JSON encoding is
// deterministic: numbers collapse to decimal strings, times to UTC
// RFC3339Nano, and maps rely on encoding/json's sorted-key output.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = canonicalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	case float64:
		return decimal.NewFromFloat(val).String()
	case float32:
		return decimal.NewFromFloat32(val).String()
	case int:
		return decimal.NewFromInt(int64(val)).String()
	case int64:
		return decimal.NewFromInt(val).String()
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d.String()
		}
		return val.String()
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// SortedAttributeKeys returns the attribute keys in stable order, used by
// activity detail rendering.
func SortedAttributeKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
