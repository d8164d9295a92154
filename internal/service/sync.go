package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/validation"
	"github.com/darmiel/insurelink/internal/wire"
)

// SyncService pulls incremental data from a provider.
type SyncService struct {
	emitter *telemetry.Emitter
}

// Synchronize fetches everything that changed since the last successful synchronization.
// Without types, the configured sync types (or all types) are requested.
// Failed synchronizations are not queued; the next scheduled run catches up.
func (s *SyncService) Synchronize(ctx context.Context, inst *providers.Instance, types []core.DataType) (_ *core.SyncResult, err error) {
	started := inst.Now()
	since := inst.Cache.LastSyncAt()
	defer func() {
		meta := map[string]any{"data_types": types}
		if since != nil {
			meta["since"] = since.Format(time.RFC3339)
		}
		s.emitter.Operation(ctx, telemetry.Event{
			Provider:  inst.ID(),
			Operation: string(wire.OpSynchronize),
			Started:   started,
			Err:       err,
			Metadata:  meta,
		})
	}()

	if len(types) == 0 {
		types = inst.Config.SyncTypes
	}
	if len(types) == 0 {
		types = core.AllDataTypes
	}
	if types, err = validation.ValidateDataTypes(types); err != nil {
		err = core.WrapError(core.KindInvalidClaim, err, "invalid synchronization request")
		return nil, err
	}

	var resp wire.SyncResponse
	if err = call(ctx, inst, wire.OpSynchronize, wire.SyncRequest{Since: since, DataTypes: types}, &resp); err != nil {
		return nil, err
	}

	result := core.SyncResult{
		ProviderID: inst.ID(),
		Data:       resp.Data,
		Timestamp:  inst.Now(),
		DataTypes:  types,
	}
	if result.Data == nil {
		result.Data = map[core.DataType]json.RawMessage{}
	}
	inst.Cache.PutSyncResult(result)
	return &result, nil
}

// Status reads the local session, token and watermark state. It never contacts the provider.
func (s *SyncService) Status(inst *providers.Instance) core.SyncStatus {
	now := inst.Now()
	st := core.SyncStatus{
		ProviderID:    inst.ID(),
		SessionActive: inst.Auth.HasSession(),
		LastSync:      inst.Cache.LastSyncAt(),
	}
	if tok, ok := inst.Auth.Token(); ok {
		st.Authenticated = !tok.Expired(now)
		exp := tok.ExpiresAt
		st.TokenExpiresAt = &exp
	}
	if interval := inst.Config.SyncInterval; interval > 0 && st.LastSync != nil {
		next := st.LastSync.Add(interval)
		st.NextSync = &next
	}
	return st
}
