package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/engine"
	"github.com/roach88/tagbridge/internal/ir"
)

var _ engine.SessionSink = (*Store)(nil)

// OpenSession writes the session row. Reopening an id with the same
// settings is a no-op; different settings are an error.
func (s *Store) OpenSession(ctx context.Context, sessionID, parentID string, cfg config.Session) error {
	var parent sql.NullString
	if parentID != "" {
		parent = sql.NullString{String: parentID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, parent_id, provenance, k, wmc_with_disjunctions, log_version, bridge_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sessionID,
		parent,
		string(cfg.Provenance),
		cfg.K,
		boolToInt(cfg.WMCWithDisjunctions),
		ir.LogVersion,
		ir.BridgeVersion,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		s.logger.Debug("session opened",
			zap.String("session", sessionID),
			zap.String("parent", parentID),
			zap.String("provenance", string(cfg.Provenance)),
		)
		return nil
	}

	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.Config.Provenance != cfg.Provenance || rec.Config.K != cfg.K || rec.Config.WMCWithDisjunctions != cfg.WMCWithDisjunctions {
		return fmt.Errorf("session %s already stored with provenance %s (k=%d)", sessionID, rec.Config.Provenance, rec.Config.K)
	}
	return nil
}

// AppendAction writes one recorded action. The row id is the action's
// content id, so appending the same action twice is a no-op. A different
// action at an occupied seq is rejected.
//
// The session row must exist; engine sessions open it through
// OpenSession before their first append.
func (s *Store) AppendAction(ctx context.Context, sessionID string, a ir.Action) error {
	id, err := ir.ActionID(sessionID, a)
	if err != nil {
		return fmt.Errorf("action id: %w", err)
	}
	body, err := marshalAction(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (id, session_id, seq, method, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		sessionID,
		a.Seq,
		string(a.Method),
		body,
	)
	if err != nil {
		return fmt.Errorf("insert action %d (%s) for session %s: %w", a.Seq, a.Method, sessionID, err)
	}
	return nil
}
