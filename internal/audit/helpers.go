package audit

import (
	"fmt"

	"github.com/darmiel/insurelink/internal/buildinfo"
)

// CreateUserAgent returns the User-Agent sent to providers so that their logs can be
// correlated with our audit log.
func CreateUserAgent(correlationID, operation, provider string) string {
	return fmt.Sprintf("InsureLink/%s (correlation_id=%s; operation=%s; provider=%s)",
		buildinfo.Version, correlationID, operation, provider)
}
