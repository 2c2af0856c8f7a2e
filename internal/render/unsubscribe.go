package render

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Unsubscribe placeholders for renders that must not produce a working
// revocation link.
const (
	PreviewToken = "PREVIEW_TOKEN"
	TestSendURL  = "#"
)

// UnsubscribeSigner builds and verifies per-send unsubscribe URLs. The
// reference embedded in the URL is the ledger row id, so one recipient's
// unsubscribe link can never be replayed against another subscription. The
// signature keeps the reference from being forged.
type UnsubscribeSigner struct {
	signingKey []byte
	baseURL    string
}

// NewUnsubscribeSigner creates a signer rooted at the given public base URL.
func NewUnsubscribeSigner(signingKey, baseURL string) *UnsubscribeSigner {
	return &UnsubscribeSigner{signingKey: []byte(signingKey), baseURL: baseURL}
}

// URL returns the signed unsubscribe URL for one ledger row.
func (u *UnsubscribeSigner) URL(sendID string) string {
	encoded := base64.URLEncoding.EncodeToString([]byte(sendID))
	return fmt.Sprintf("%s/unsubscribe/%s/%s", u.baseURL, encoded, u.sign(sendID))
}

// Verify checks a token/signature pair and returns the ledger row id it
// refers to.
func (u *UnsubscribeSigner) Verify(token, signature string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid encoding")
	}
	sendID := string(decoded)
	if !hmac.Equal([]byte(u.sign(sendID)), []byte(signature)) {
		return "", fmt.Errorf("invalid signature")
	}
	return sendID, nil
}

func (u *UnsubscribeSigner) sign(data string) string {
	h := hmac.New(sha256.New, u.signingKey)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
