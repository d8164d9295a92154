package buildinfo

import (
	"runtime"

	"github.com/darmiel/insurelink/internal/wire"
)

// set via -ldflags at build time
var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	Service    string `json:"service"`
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	GoVersion  string `json:"go_version"`

	// WireSchema is the envelope schema version spoken with providers. Servers and
	// clients with different schema versions may disagree on claim and sync payloads.
	WireSchema string `json:"wire_schema"`
}

func GetBuildInfo() Info {
	return Info{
		Service:    "insurelink",
		Version:    Version,
		CommitHash: CommitHash,
		GoVersion:  runtime.Version(),
		WireSchema: wire.SchemaVersion,
	}
}
