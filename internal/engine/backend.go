package engine

import (
	"context"

	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/ir"
)

// Backend is the reasoning engine a Session drives. Implementations own
// parsing, storage and evaluation; the session never inspects backend
// state beyond what these calls return.
type Backend interface {
	// DeclareRelation declares a relation from "name(type0, type1, ...)"
	// and returns its canonical name. Redeclaring the same string is a
	// no-op; an incompatible redeclaration is a RelationConflictError.
	DeclareRelation(ctx context.Context, decl string) (string, error)

	// SubmitFacts ingests normalized facts. Arity or column type mismatch
	// is a TupleShapeError.
	SubmitFacts(ctx context.Context, relation string, facts []ir.FactElement) error

	// RegisterFunction binds a foreign function under its rendered
	// signature. A name already bound is a DuplicateNameError.
	RegisterFunction(ctx context.Context, signature string, ff *ir.ForeignFunction) error

	AddRule(ctx context.Context, rule string, tag ir.Value) error
	AddProgram(ctx context.Context, src string) error
	Run(ctx context.Context) error

	Relation(ctx context.Context, name string) ([]ir.FactElement, error)
	HasRelation(name string) bool
	Relations() []string

	// Clone returns an independent handle. It must be safe to call from
	// several goroutines at once on the same receiver.
	Clone(ctx context.Context) (Backend, error)
}

// ProvenanceSwitcher is implemented by backends that can fork under
// different provenance settings. CloneWithProvenance returns a
// ConfigurationError when the stored state cannot carry over.
type ProvenanceSwitcher interface {
	CloneWithProvenance(ctx context.Context, from, to config.Session) (Backend, error)
}

// HistorySink persists replay-log actions as they are recorded.
type HistorySink interface {
	AppendAction(ctx context.Context, sessionID string, a ir.Action) error
}

// SessionSink is a HistorySink that also keeps per-session metadata.
// OpenSession is called once per session, before its first action is
// appended. parentID is empty unless the session is a clone.
type SessionSink interface {
	HistorySink
	OpenSession(ctx context.Context, sessionID, parentID string, cfg config.Session) error
}
