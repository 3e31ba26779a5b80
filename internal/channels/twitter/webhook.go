package twitter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const signaturePrefix = "sha256="

// CRCResponseToken answers an Account Activity challenge-response check.
func CRCResponseToken(consumerSecret, crcToken string) string {
	return signaturePrefix + sign(consumerSecret, []byte(crcToken))
}

// VerifySignature checks the x-twitter-webhooks-signature header against the
// raw request body.
func VerifySignature(consumerSecret string, body []byte, signature string) bool {
	if consumerSecret == "" || !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	got := strings.TrimPrefix(signature, signaturePrefix)
	if got == "" {
		return false
	}
	expected := sign(consumerSecret, body)
	return hmac.Equal([]byte(expected), []byte(got))
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
