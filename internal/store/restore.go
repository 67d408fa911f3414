package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/engine"
	"github.com/roach88/tagbridge/internal/ir"
)

// Restore rebuilds a stored session against backend by replaying its
// actions. cfg supplies the settings that are not stored (batch workers,
// log level); its provenance settings are replaced by the stored ones.
//
// The restored session gets a fresh id from opts, as with engine.Replay.
// Pass engine.WithHistorySink(s) to keep logging it.
func (s *Store) Restore(ctx context.Context, sessionID string, backend engine.Backend, cfg config.Session, functions map[string]*ir.ForeignFunction, opts ...engine.SessionOption) (*engine.Session, error) {
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	if rec.LogVersion != ir.LogVersion {
		return nil, fmt.Errorf("session %s: log version %s, want %s", sessionID, rec.LogVersion, ir.LogVersion)
	}
	history, err := s.ReadActions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	cfg.Provenance = rec.Config.Provenance
	cfg.K = rec.Config.K
	cfg.WMCWithDisjunctions = rec.Config.WMCWithDisjunctions

	sess, err := engine.Replay(ctx, backend, cfg, history, functions, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", sessionID, err)
	}
	s.logger.Info("session restored",
		zap.String("from", sessionID),
		zap.String("session", sess.ID()),
		zap.Int("actions", len(history)),
	)
	return sess, nil
}
