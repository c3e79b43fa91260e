package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// signingMaterial is the deterministic structure HMAC-SHA256 is computed
// over: JSON({messageId, payload}).
//
// This is the one corner of the Security Manager built directly on the
// standard library's crypto/hmac and crypto/sha256: none of the example
// repos implement envelope-level message signing, so there is no
// third-party pattern to ground this on.
type signingMaterial struct {
	MessageID string           `json:"messageId"`
	Payload   protocol.Payload `json:"payload"`
}

func canonicalBytes(env protocol.Envelope, payload protocol.Payload) ([]byte, error) {
	return json.Marshal(signingMaterial{MessageID: env.MessageID, Payload: payload})
}

// SignMessage returns the base64-encoded HMAC-SHA256 of the canonical
// {messageId, payload} JSON, keyed by secret.
func SignMessage(secret []byte, env protocol.Envelope, payload protocol.Payload) (string, error) {
	data, err := canonicalBytes(env, payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature performs a constant-time comparison of env.Signature
// against the expected HMAC. Returns false if the signature is absent or
// the decoded lengths differ.
func VerifySignature(secret []byte, env protocol.Envelope, payload protocol.Payload) bool {
	if env.Signature == "" {
		return false
	}
	given, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return false
	}
	data, err := canonicalBytes(env, payload)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	expected := mac.Sum(nil)
	if len(given) != len(expected) {
		return false
	}
	return hmac.Equal(given, expected)
}

// randomSecret returns 32 cryptographically random bytes, used when no
// shared secret is supplied to NewManager.
func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("security: failed to read random secret: " + err.Error())
	}
	return buf
}

// GenerateNonce returns n cryptographically random bytes, base64-encoded.
func GenerateNonce(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("security: failed to read random nonce: " + err.Error())
	}
	return base64.StdEncoding.EncodeToString(buf)
}
