package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/ir"
	"github.com/roach88/tagbridge/internal/normalize"
)

// Session is the host-side view of one program running on a Backend.
//
// Session is not safe for concurrent use; see the package documentation.
type Session struct {
	id      string
	cfg     config.Session
	backend Backend
	base    *zap.Logger
	logger  *zap.Logger
	idGen   IDGenerator
	sink    HistorySink
	parent  string
	opened  bool // sink has seen this session

	counter   *Counter
	shapes    map[string]*ir.RelationShape
	order     []string // declaration order of shapes
	functions map[string]*ir.ForeignFunction
	history   []ir.Action
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.base = logger
		}
	}
}

// WithIDGenerator sets the session id source. The default is
// UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) SessionOption {
	return func(s *Session) {
		if gen != nil {
			s.idGen = gen
		}
	}
}

// WithHistorySink persists every recorded action as it happens.
func WithHistorySink(sink HistorySink) SessionOption {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithCounter starts the session from an existing counter position.
func WithCounter(c *Counter) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.counter = c
		}
	}
}

// New creates a session over backend. cfg is validated first; an unknown
// provenance is a ConfigurationError.
func New(backend Backend, cfg config.Session, opts ...SessionOption) (*Session, error) {
	if backend == nil {
		return nil, ir.NewConfigurationError("nil backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		backend:   backend,
		base:      zap.NewNop(),
		idGen:     UUIDv7Generator{},
		counter:   NewCounter(),
		shapes:    make(map[string]*ir.RelationShape),
		functions: make(map[string]*ir.ForeignFunction),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.idGen.Generate()
	s.scopeLogger()
	return s, nil
}

func (s *Session) scopeLogger() {
	s.logger = s.base.With(
		zap.String("session", s.id),
		zap.String("provenance", string(s.cfg.Provenance)),
	)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the validated settings the session runs with.
func (s *Session) Config() config.Session { return s.cfg }

// Provenance returns the session's provenance.
func (s *Session) Provenance() config.Provenance { return s.cfg.Provenance }

// RequiresTag reports whether facts carry a per-fact tag.
func (s *Session) RequiresTag() bool { return s.cfg.Provenance.RequiresTag() }

// IsProbabilistic reports whether tags are probabilities.
func (s *Session) IsProbabilistic() bool { return s.cfg.Provenance.IsProbabilistic() }

// SupportsDisjunctions reports whether facts can carry group ids.
func (s *Session) SupportsDisjunctions() bool { return s.cfg.Provenance.SupportsDisjunctions() }

// IsDifferentiable reports whether the provenance propagates gradients.
func (s *Session) IsDifferentiable() bool { return s.cfg.Provenance.IsDifferentiable() }

// NextGroupID returns the id the next disjunction will receive.
func (s *Session) NextGroupID() int64 { return s.counter.Peek() }

func (s *Session) mode() normalize.Mode {
	return normalize.Mode{
		RequiresTag:          s.RequiresTag(),
		SupportsDisjunctions: s.SupportsDisjunctions(),
	}
}

// canonicalName folds a relation name to NFC, the form the backend
// reports back.
func canonicalName(name string) string { return norm.NFC.String(name) }

func (s *Session) shape(name string) (*ir.RelationShape, error) {
	sh, ok := s.shapes[canonicalName(name)]
	if !ok {
		return nil, ir.NewUnknownRelationError(name)
	}
	return sh, nil
}

// Shape returns a copy of the declared shape of name.
func (s *Session) Shape(name string) (*ir.RelationShape, bool) {
	sh, ok := s.shapes[canonicalName(name)]
	if !ok {
		return nil, false
	}
	return sh.Clone(), true
}

// DeclaredRelations lists relations declared through this session, in
// declaration order.
func (s *Session) DeclaredRelations() []string { return slices.Clone(s.order) }

// HasRelation reports whether name is known to the session or to the
// backend (relations can be introduced by rules).
func (s *Session) HasRelation(name string) bool {
	name = canonicalName(name)
	if _, ok := s.shapes[name]; ok {
		return true
	}
	return s.backend.HasRelation(name)
}

// Relations lists every relation the backend knows.
func (s *Session) Relations() []string { return s.backend.Relations() }

// IsNonProbabilistic reports whether facts of name are submitted without
// tags.
func (s *Session) IsNonProbabilistic(name string) bool {
	sh, ok := s.shapes[canonicalName(name)]
	return ok && sh.NonProbabilistic
}

// Function returns the foreign function registered under name.
func (s *Session) Function(name string) (*ir.ForeignFunction, bool) {
	ff, ok := s.functions[name]
	return ff, ok
}

// CloneOption overrides a provenance setting for the clone.
type CloneOption func(*config.Session)

// CloneProvenance runs the clone under p.
func CloneProvenance(p config.Provenance) CloneOption {
	return func(c *config.Session) { c.Provenance = p }
}

// CloneK sets the clone's proof bound.
func CloneK(k int) CloneOption {
	return func(c *config.Session) { c.K = k }
}

// CloneWMCWithDisjunctions sets whether the clone's weighted model
// counting honours disjunctions.
func CloneWMCWithDisjunctions(on bool) CloneOption {
	return func(c *config.Session) { c.WMCWithDisjunctions = on }
}

// Clone forks the session. Shapes, mappings, registered functions, the
// counter and the history are copied; the backend is asked for an
// independent handle. The clone gets a fresh id. When a history sink is
// configured the copied history is persisted under the new id.
//
// Options switch the clone to other provenance settings. That needs a
// backend implementing ProvenanceSwitcher; anything else, or settings
// that fail validation, is a ConfigurationError. The parent is never
// affected.
func (s *Session) Clone(ctx context.Context, opts ...CloneOption) (*Session, error) {
	cfg := s.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var b Backend
	var err error
	if cfg.Provenance == s.cfg.Provenance && cfg.K == s.cfg.K &&
		cfg.WMCWithDisjunctions == s.cfg.WMCWithDisjunctions {
		b, err = s.backend.Clone(ctx)
	} else {
		sw, ok := s.backend.(ProvenanceSwitcher)
		if !ok {
			return nil, ir.NewConfigurationError(fmt.Sprintf(
				"backend cannot switch provenance from %s to %s", s.cfg.Provenance, cfg.Provenance))
		}
		b, err = sw.CloneWithProvenance(ctx, s.cfg, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("clone backend: %w", err)
	}

	c := &Session{
		cfg:       cfg,
		backend:   b,
		base:      s.base,
		idGen:     s.idGen,
		sink:      s.sink,
		parent:    s.id,
		counter:   s.counter.Fork(),
		shapes:    make(map[string]*ir.RelationShape, len(s.shapes)),
		order:     slices.Clone(s.order),
		functions: maps.Clone(s.functions),
		history:   make([]ir.Action, len(s.history)),
	}
	for name, sh := range s.shapes {
		c.shapes[name] = sh.Clone()
	}
	for i, a := range s.history {
		c.history[i] = a.Clone()
	}
	c.id = c.idGen.Generate()
	c.scopeLogger()

	if c.sink != nil {
		for _, a := range c.history {
			if err := c.persist(ctx, a); err != nil {
				return nil, fmt.Errorf("persist cloned history: %w", err)
			}
		}
	}
	c.logger.Debug("session cloned",
		zap.String("from", s.id),
		zap.Int("actions", len(c.history)),
		zap.Int64("next_group_id", c.counter.Peek()),
	)
	return c, nil
}
