package twitter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRCResponseToken(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("consumer-secret"))
	mac.Write([]byte("challenge"))
	want := "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, CRCResponseToken("consumer-secret", "challenge"))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"for_user_id":"42"}`)
	valid := CRCResponseToken("secret", string(body))

	assert.True(t, VerifySignature("secret", body, valid))
	assert.False(t, VerifySignature("other", body, valid))
	assert.False(t, VerifySignature("secret", []byte("tampered"), valid))
	assert.False(t, VerifySignature("", body, valid))
	assert.False(t, VerifySignature("secret", body, ""))
	assert.False(t, VerifySignature("secret", body, "sha256="))
}
