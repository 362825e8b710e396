package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signer signs receipt download links so browsers can fetch them without API credentials
type Signer struct {
	secret []byte
	now    func() time.Time
}

// linkKeyLabel separates the receipt link key from other keys derived from the same secret
const linkKeyLabel = "receipt-links"

// DeriveLinkKey derives the receipt link signing key from a shared secret
func DeriveLinkKey(secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(linkKeyLabel))
	return mac.Sum(nil)
}

// NewSigner creates a Signer
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature for a bill id and expiry
func (s *Signer) Sign(id string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", id, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate checks the signature and that the link has not expired
func (s *Signer) Validate(id, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if s.now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(s.Sign(id, exp)), []byte(signature))
}
