package commerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// VerifySignature checks a webhook payload against its signature header.
// The header carries an HMAC-SHA256 of the raw body keyed with the shared
// webhook secret, hex encoded with an optional "sha256=" prefix. The
// comparison is constant time. A missing header or an unconfigured
// secret fails verification; unsigned traffic is never accepted.
func VerifySignature(payload []byte, header, secret string) error {
	if header == "" || secret == "" {
		return syncdomain.ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	presented := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if !hmac.Equal([]byte(presented), []byte(expected)) {
		return syncdomain.ErrSignatureMismatch
	}
	return nil
}
