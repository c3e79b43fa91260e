package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Size limits enforced on wire payloads and RPC-submitted fields.
const (
	MaxTaskDescriptionChars   = 65_536
	MaxValidatedTaskDescChars = 16_384 // validation-layer limit for externally submitted descriptions
	MaxResultTextChars        = 262_144
	MaxStatusLineChars        = 1_024
	MaxPayloadBytes           = 256 * 1024
	MaxAgentIDChars           = 128
	MaxRoleNameChars          = 64
)

var allowedGatewaySchemes = map[string]bool{
	"ws": true, "wss": true, "http": true, "https": true,
}

type validationError struct {
	field string
	value string
}

func errInvalidField(field, value string) error {
	return &validationError{field: field, value: value}
}

func (e *validationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.field, e.value)
}

// ValidateLoad checks that a load fraction lies in [0, 1].
func ValidateLoad(load float64) error {
	if load < 0 || load > 1 {
		return fmt.Errorf("load %f out of range [0,1]", load)
	}
	return nil
}

// ValidatePercent checks that a progress percent lies in [0, 100].
func ValidatePercent(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("percent %d out of range [0,100]", percent)
	}
	return nil
}

// ValidateTTLSeconds checks ttlSeconds lies in [1, 86400].
func ValidateTTLSeconds(ttl int) error {
	if ttl < 1 || ttl > 86_400 {
		return fmt.Errorf("ttlSeconds %d out of range [1,86400]", ttl)
	}
	return nil
}

// ValidateHopCount checks hopCount lies in [0, 32].
func ValidateHopCount(hops int) error {
	if hops < 0 || hops > 32 {
		return fmt.Errorf("hopCount %d out of range [0,32]", hops)
	}
	return nil
}

// ValidatePayloadSize marshals v and checks the serialized size against the
// 256 KiB limit.
func ValidatePayloadSize(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("payload not serializable: %w", err)
	}
	if len(data) > MaxPayloadBytes {
		return fmt.Errorf("payload size %d exceeds %d byte limit", len(data), MaxPayloadBytes)
	}
	return nil
}

// ValidateGatewayURL checks the scheme whitelist and rejects embedded
// userinfo credentials.
func ValidateGatewayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed gateway url: %w", err)
	}
	if !allowedGatewaySchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("gateway url scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("gateway url must not embed credentials")
	}
	return nil
}

// SanitizeString strips C0 control characters (except tab, newline, CR),
// C1 control characters, and zero-width code points from s.
func SanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r <= 0x1F || r == 0x7F:
			continue // C0 / DEL
		case r >= 0x80 && r <= 0x9F:
			continue // C1
		case isZeroWidth(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isZeroWidth(r rune) bool {
	switch r {
	case 0x200B, 0x200C, 0x200D, 0x2060, 0xFEFF:
		return true
	}
	return unicode.Is(unicode.Cf, r) && r != ' '
}
