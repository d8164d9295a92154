// Package providers builds the per-provider runtime: transport session, codec,
// authentication, rate limiting, cache and retry queue.
package providers

import (
	"fmt"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers/https"
	"github.com/darmiel/insurelink/internal/providers/stub"
)

// NewSessionFactory returns the session opener selected by the transport type of cfg.
// An empty type selects https.
func NewSessionFactory(cfg core.ProviderConfig, codec core.Codec) (core.SessionFactory, error) {
	switch cfg.Transport.Type {
	case "", https.Type:
		factory, err := https.NewFactory(cfg)
		if err != nil {
			return nil, core.Reclassify(core.KindInvalidProviderConfig, err, "building https transport")
		}
		return factory, nil
	case stub.Type:
		ins, err := stub.NewFromConfig(cfg, codec)
		if err != nil {
			return nil, core.Reclassify(core.KindInvalidProviderConfig, err, "building stub transport")
		}
		return ins.Factory(), nil
	default:
		return nil, core.NewError(core.KindInvalidProviderConfig,
			"unknown transport type %q for provider %q", cfg.Transport.Type, cfg.ID)
	}
}

// TransportTypes lists the supported transport types.
func TransportTypes() []string {
	return []string{https.Type, stub.Type}
}

func describe(cfg core.ProviderConfig) string {
	if cfg.Name != "" {
		return fmt.Sprintf("%s (%s)", cfg.Name, cfg.ID)
	}
	return cfg.ID
}
