// Package backend provides Memory, an in-process reference implementation
// of engine.Backend.
//
// Memory validates everything the binding layer hands it (declaration and
// signature grammar, tuple shapes, duplicate functions) and stores facts,
// rules and programs. It does not evaluate rules: Run only marks the
// current inputs as computed, so Relation returns exactly what was
// submitted.
package backend

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/compiler"
	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/engine"
	"github.com/roach88/tagbridge/internal/ir"
)

var (
	_ engine.Backend            = (*Memory)(nil)
	_ engine.ProvenanceSwitcher = (*Memory)(nil)
)

// Rule is a stored rule and its tag.
type Rule struct {
	Text string
	Tag  ir.Value
}

// Submission records one SubmitFacts call.
type Submission struct {
	Relation string
	Facts    []ir.FactElement
}

type relation struct {
	decl  string
	types []ir.Base

	// implicit relations are introduced by rule heads and have no
	// declared types until a declaration arrives.
	implicit bool

	// facts is never mutated in place, so clones may share it.
	facts []ir.FactElement
}

type function struct {
	signature string
	ff        *ir.ForeignFunction
}

// Memory is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	relations map[string]*relation
	order     []string
	functions map[string]function
	rules     []Rule
	programs  []string
	log       []Submission
	runs      int
}

// Option configures a Memory backend.
type Option func(*Memory)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemory creates an empty backend.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		logger:    zap.NewNop(),
		relations: make(map[string]*relation),
		functions: make(map[string]function),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DeclareRelation parses decl and records the relation.
func (m *Memory) DeclareRelation(ctx context.Context, decl string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, types, err := compiler.ParseRelationDecl(decl)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.relations[name]; ok {
		if r.implicit {
			r.decl, r.types, r.implicit = decl, types, false
			return name, nil
		}
		if !slices.Equal(r.types, types) {
			return "", ir.NewRelationConflictError(name, r.decl, decl)
		}
		return name, nil
	}
	m.relations[name] = &relation{decl: decl, types: types}
	m.order = append(m.order, name)
	m.logger.Debug("relation declared", zap.String("decl", decl))
	return name, nil
}

// SubmitFacts type-checks every tuple and appends the batch. Nothing is
// stored when any tuple fails.
func (m *Memory) SubmitFacts(ctx context.Context, name string, facts []ir.FactElement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.relations[name]
	if !ok || r.implicit {
		return ir.NewUnknownRelationError(name)
	}
	for i, f := range facts {
		if f.Tag == nil {
			return ir.NewTupleShapeError(name, i, "missing tag")
		}
		if err := ir.CheckTuple(name, i, r.types, f.Tuple); err != nil {
			return err
		}
	}

	batch := make([]ir.FactElement, len(facts))
	for i, f := range facts {
		batch[i] = ir.FactElement{Tag: f.Tag, Tuple: f.Tuple.Clone()}
	}
	r.facts = slices.Concat(r.facts, batch)
	m.log = append(m.log, Submission{Relation: name, Facts: batch})
	return nil
}

// RegisterFunction checks that signature parses, that it agrees with ff
// and that the name is free.
func (m *Memory) RegisterFunction(ctx context.Context, signature string, ff *ir.ForeignFunction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sig, err := compiler.ParseSignature(signature)
	if err != nil {
		return err
	}
	if ff == nil || !sig.Equal(ff.Signature()) {
		return ir.NewSignatureError(sig.Name(), "declared signature does not match the bound function")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.functions[sig.Name()]; dup {
		return ir.NewDuplicateNameError(sig.Name())
	}
	m.functions[sig.Name()] = function{signature: signature, ff: ff}
	if !ff.SuppressWarning() {
		m.logger.Debug("foreign function registered", zap.String("signature", signature))
	}
	return nil
}

// Invoke calls a registered function the way an engine program would.
func (m *Memory) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	fn, ok := m.functions[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	return fn.ff.Call(args...)
}

// AddRule stores rule and makes its head relation known.
func (m *Memory) AddRule(ctx context.Context, rule string, tag ir.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	head, err := ruleHead(rule)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = append(m.rules, Rule{Text: rule, Tag: tag})
	if _, ok := m.relations[head]; !ok {
		m.relations[head] = &relation{implicit: true}
		m.order = append(m.order, head)
	}
	return nil
}

// ruleHead returns the relation name a rule defines.
func ruleHead(rule string) (string, error) {
	text := strings.TrimSpace(rule)
	sep := strings.IndexAny(text, "=:")
	if sep <= 0 {
		return "", fmt.Errorf("rule %q: expected head :- body or head = body", rule)
	}
	head := strings.TrimSpace(text[:sep])
	if open := strings.IndexByte(head, '('); open >= 0 {
		head = strings.TrimSpace(head[:open])
	}
	if head == "" || strings.ContainsAny(head, " \t") {
		return "", fmt.Errorf("rule %q: malformed head", rule)
	}
	return head, nil
}

// AddProgram stores src. Each "rel" line is added as a rule.
func (m *Memory) AddProgram(ctx context.Context, src string) error {
	if strings.TrimSpace(src) == "" {
		return fmt.Errorf("empty program")
	}
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "rel "); ok {
			if err := m.AddRule(ctx, rest, nil); err != nil {
				return err
			}
		}
	}
	m.mu.Lock()
	m.programs = append(m.programs, src)
	m.mu.Unlock()
	return nil
}

// Run marks the current inputs as computed.
func (m *Memory) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	return nil
}

// Relation returns the stored facts of name.
func (m *Memory) Relation(ctx context.Context, name string) ([]ir.FactElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.relations[name]
	if !ok {
		return nil, ir.NewUnknownRelationError(name)
	}
	out := make([]ir.FactElement, len(r.facts))
	for i, f := range r.facts {
		out[i] = ir.FactElement{Tag: f.Tag, Tuple: f.Tuple.Clone()}
	}
	return out, nil
}

// HasRelation reports whether name was declared or defined by a rule.
func (m *Memory) HasRelation(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relations[name]
	return ok
}

// Relations lists known relations in the order they became known.
func (m *Memory) Relations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Clone returns an independent backend. Stored fact slices are shared
// copy-on-write.
func (m *Memory) Clone(ctx context.Context) (engine.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &Memory{
		logger:    m.logger,
		relations: make(map[string]*relation, len(m.relations)),
		order:     slices.Clone(m.order),
		functions: make(map[string]function, len(m.functions)),
		rules:     slices.Clone(m.rules),
		programs:  slices.Clone(m.programs),
		log:       slices.Clone(m.log),
		runs:      m.runs,
	}
	for name, r := range m.relations {
		rc := *r
		rc.types = slices.Clone(r.types)
		rc.facts = slices.Clip(r.facts)
		c.relations[name] = &rc
	}
	for name, fn := range m.functions {
		c.functions[name] = fn
	}
	return c, nil
}

// CloneWithProvenance clones m for a session moving from one provenance
// to another. Stored facts only carry over when both agree on whether
// facts are tagged and on whether they may be disjunctive.
func (m *Memory) CloneWithProvenance(ctx context.Context, from, to config.Session) (engine.Backend, error) {
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if from.Provenance.RequiresTag() != to.Provenance.RequiresTag() ||
		from.Provenance.SupportsDisjunctions() != to.Provenance.SupportsDisjunctions() {
		m.mu.RLock()
		for _, name := range m.order {
			if len(m.relations[name].facts) > 0 {
				m.mu.RUnlock()
				return nil, ir.NewConfigurationError(fmt.Sprintf(
					"relation %s holds facts tagged for %s, which %s cannot read",
					name, from.Provenance, to.Provenance))
			}
		}
		m.mu.RUnlock()
	}
	return m.Clone(ctx)
}

// Rules returns the stored rules.
func (m *Memory) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rules)
}

// Programs returns the stored program texts.
func (m *Memory) Programs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.programs)
}

// Submissions returns every accepted SubmitFacts batch in order.
func (m *Memory) Submissions() []Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.log)
}

// Functions returns the registered signatures, sorted by name.
func (m *Memory) Functions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.functions))
	for name := range m.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = m.functions[name].signature
	}
	return out
}

// Runs returns how many times Run has been called.
func (m *Memory) Runs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs
}
