package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ratelens/ratelens/internal/config"
	"github.com/ratelens/ratelens/internal/core/engine"
	"github.com/ratelens/ratelens/internal/core/store"
	"github.com/ratelens/ratelens/internal/observability"
)

// buildService wires the engine from loaded config. When withAudit is set the
// libsql store is opened and events are recorded; an unavailable store
// degrades to no auditing rather than failing the command.
func buildService(ctx context.Context, withAudit bool) (*engine.Service, *store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var db *store.Store
	var audit engine.AuditStore
	if withAudit {
		db, err = openStore(ctx)
		if err != nil {
			observability.CLILogger.Warn("Audit store unavailable, events will not be recorded", zap.Error(err))
			db = nil
		} else {
			audit = db
		}
	}

	svc, err := engine.New(cfg, engine.Options{
		Audit:  audit,
		Logger: observability.CLILogger,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, err
	}

	return svc, db, nil
}

func closeService(svc *engine.Service, db *store.Store) {
	if svc != nil {
		svc.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
