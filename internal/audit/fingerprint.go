package audit

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/darmiel/insurelink/internal/core"
)

// Fingerprint identifies a token in audit entries without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return "(n/a)"
	}
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// DescribeToken returns the redacted view of token.
func DescribeToken(token core.AuthToken) core.TokenInfo {
	return core.TokenInfo{
		Fingerprint: Fingerprint(token.AccessToken),
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
		Refreshable: token.RefreshToken != "",
	}
}
