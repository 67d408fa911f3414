package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/ir"
)

// SessionRecord is a stored session row.
type SessionRecord struct {
	ID            string
	ParentID      string
	Config        config.Session
	LogVersion    string
	BridgeVersion string
}

// ReadSession returns the session row. Returns sql.ErrNoRows if not found.
//
// Only the provenance settings are stored; the other Config fields are
// left at config.Default.
func (s *Store) ReadSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	rec := SessionRecord{ID: sessionID, Config: config.Default()}
	var (
		parent     sql.NullString
		provenance string
		wmc        int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT parent_id, provenance, k, wmc_with_disjunctions, log_version, bridge_version
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&parent, &provenance, &rec.Config.K, &wmc, &rec.LogVersion, &rec.BridgeVersion)
	if err != nil {
		return SessionRecord{}, err
	}
	rec.ParentID = parent.String
	rec.Config.Provenance = config.Provenance(provenance)
	rec.Config.WMCWithDisjunctions = wmc != 0
	return rec, nil
}

// ReadActions returns the session's actions ordered by seq.
//
// Returns an empty slice (not nil) if the session has no actions.
func (s *Store) ReadActions(ctx context.Context, sessionID string) ([]ir.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, body
		FROM actions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []ir.Action{}
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a, err := unmarshalAction(body)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", seq, err)
		}
		if a.Seq != seq {
			return nil, fmt.Errorf("action %d: body carries seq %d", seq, a.Seq)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// ReadChildren returns the ids of sessions cloned from parentID, in id
// order.
func (s *Store) ReadChildren(ctx context.Context, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM sessions
		WHERE parent_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return ids, nil
}
