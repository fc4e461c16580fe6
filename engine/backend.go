package engine

import (
	"context"
	"log/slog"

	"github.com/OpenParachutePBC/parachute-sub000/credential"
	"github.com/OpenParachutePBC/parachute-sub000/gitvault"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/vaultconfig"
)

// Backend runs synchronization passes for one vault. The engine treats
// the native repository backend and the REST fallback identically: both
// converge the local vault and the remote to the same content and report
// what moved.
type Backend interface {
	// Probe verifies the remote is reachable with the current
	// credential. Called before sync is enabled so a bad URL or token
	// fails fast instead of on the first background pass.
	Probe(ctx context.Context) error

	// Sync runs one full pass. A partial failure returns both a result
	// and an error; the failed paths are retried on the next pass.
	Sync(ctx context.Context) (*reconcile.Result, error)
}

// BackendFactory builds the backend for a configuration. The engine is
// backend-agnostic; callers choose native or REST (or a platform probe
// that picks one) by supplying the factory.
type BackendFactory func(ctx context.Context, cfg *vaultconfig.SyncConfiguration, creds credential.Source) (Backend, error)

// AutoBackendFactory prefers the native repository backend and falls back
// to the REST backend when the repository cannot be opened or bootstrapped
// on this device.
func AutoBackendFactory(who gitvault.Signature, logger *slog.Logger) BackendFactory {
	native := NativeBackendFactory(who, logger)
	rest := RESTBackendFactory(logger)

	return func(ctx context.Context, cfg *vaultconfig.SyncConfiguration, creds credential.Source) (Backend, error) {
		backend, err := native(ctx, cfg, creds)
		if err == nil {
			return backend, nil
		}

		logger.Warn("native backend unavailable, falling back to REST", "err", err)
		return rest(ctx, cfg, creds)
	}
}
