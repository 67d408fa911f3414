package harness

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/backend"
	"github.com/roach88/tagbridge/internal/compiler"
	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/engine"
	"github.com/roach88/tagbridge/internal/ir"
	"github.com/roach88/tagbridge/internal/store"
	"github.com/roach88/tagbridge/internal/testutil"
)

// Option configures Run.
type Option func(*options)

type options struct {
	logger *zap.Logger
	store  *store.Store
}

// WithLogger sets the logger handed to the session and backend. The
// default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStore persists the session's replay log to st and checks, after the
// last step, that what was persisted reads back identical to the history.
func WithStore(st *store.Store) Option {
	return func(o *options) { o.store = st }
}

// Run executes a scenario on a fresh backend.Memory and returns the
// result. A returned error means the scenario could not be set up; step
// and assertion failures are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(zap.String("scenario", scenario.Name))

	cfg := config.Default()
	cfg.Provenance = scenario.Provenance
	if scenario.K > 0 {
		cfg.K = scenario.K
	}

	prefix := scenario.SessionID
	if prefix == "" {
		prefix = scenario.Name
	}
	sessOpts := []engine.SessionOption{
		engine.WithLogger(logger),
		engine.WithIDGenerator(testutil.NewSequentialIDs(prefix)),
	}
	if o.store != nil {
		sessOpts = append(sessOpts, engine.WithHistorySink(o.store))
	}

	mem := backend.NewMemory(backend.WithLogger(logger))
	sess, err := engine.New(mem, cfg, sessOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if scenario.Manifest != "" {
		if err := applyManifest(ctx, sess, scenario.Manifest); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		checkStep(result, i, step, executeStep(ctx, sess, step))
	}

	if err := collect(ctx, sess, result); err != nil {
		return nil, err
	}

	if o.store != nil {
		persisted, err := o.store.ReadActions(ctx, sess.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to read persisted history: %w", err)
		}
		if diff := cmp.Diff(persisted, sess.History()); diff != "" {
			result.AddError("persisted history differs (-persisted +recorded):\n" + diff)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	logger.Debug("scenario finished",
		zap.Bool("pass", result.Pass),
		zap.Int("actions", len(result.Trace)),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func applyManifest(ctx context.Context, sess *engine.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := compiler.CompileManifestString(string(data))
	if err != nil {
		return fmt.Errorf("failed to compile manifest %s: %w", path, err)
	}
	if err := sess.ApplyManifest(ctx, m, ManifestCalls); err != nil {
		return fmt.Errorf("failed to apply manifest %s: %w", path, err)
	}
	return nil
}

func checkStep(result *Result, index int, step Step, err error) {
	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", index, step.Op, err))
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s error, got success", index, step.Op, step.ExpectError))
	case step.ExpectError != "" && !ir.HasCode(err, ir.ErrorCode(step.ExpectError)):
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s error, got: %v", index, step.Op, step.ExpectError, err))
	}
}

func executeStep(ctx context.Context, sess *engine.Session, step Step) error {
	switch step.Op {
	case OpAddRelation:
		var opts []engine.RelationOption
		if step.RetainTopK != 0 {
			opts = append(opts, engine.WithRetainTopK(step.RetainTopK))
		}
		if step.NonProbabilistic {
			opts = append(opts, engine.NonProbabilistic())
		}
		if step.Mapping != nil {
			m, err := toMapping(step.Mapping)
			if err != nil {
				return err
			}
			opts = append(opts, engine.WithInputMapping(m))
		}
		_, err := sess.AddRelation(ctx, step.Relation, step.Fields, opts...)
		return err

	case OpAddFacts:
		facts, err := toFacts(step.Facts)
		if err != nil {
			return err
		}
		return sess.AddFacts(ctx, step.Relation, facts, step.Disjunctions)

	case OpSetNonProbabilistic:
		return sess.SetNonProbabilistic(ctx, step.Relation, *step.Value)

	case OpSetInputMapping:
		var m *ir.InputMapping
		if step.Mapping != nil {
			var err error
			if m, err = toMapping(step.Mapping); err != nil {
				return err
			}
		}
		return sess.SetInputMapping(ctx, step.Relation, m)

	case OpMapInput:
		return sess.MapInput(ctx, step.Relation, step.Scores)

	case OpAddRule:
		var tag ir.Value
		if step.Tag != nil {
			v, err := ir.FromGo(step.Tag)
			if err != nil {
				return fmt.Errorf("tag: %w", err)
			}
			tag = v
		}
		return sess.AddRule(ctx, step.Rule, tag)

	case OpAddProgram:
		return sess.AddProgram(ctx, step.Program)

	case OpRegisterFunction:
		_, err := sess.RegisterFunc(ctx, step.Function, Builtins[step.Function], compiler.Options{})
		return err

	case OpRun:
		return sess.Run(ctx)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

func toFacts(specs []FactSpec) ([]ir.RawFact, error) {
	facts := make([]ir.RawFact, len(specs))
	for i, f := range specs {
		v, err := ir.FromGo(f.Tuple)
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		facts[i] = ir.RawFact{Value: v}
		if f.Tag != nil {
			tag, err := ir.FromGo(f.Tag)
			if err != nil {
				return nil, fmt.Errorf("facts[%d] tag: %w", i, err)
			}
			facts[i].Tagged = true
			facts[i].Tag = tag
		}
	}
	return facts, nil
}

func toMapping(ms *MappingSpec) (*ir.InputMapping, error) {
	m := &ir.InputMapping{
		Tuples:          make([]ir.Tuple, len(ms.Tuples)),
		Disjunctive:     ms.Disjunctive,
		RetainK:         ms.RetainK,
		RetainThreshold: ms.RetainThreshold,
	}
	for i, raw := range ms.Tuples {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("mapping tuple %d: %w", i, err)
		}
		if t, ok := v.(ir.Tuple); ok {
			m.Tuples[i] = t
		} else {
			m.Tuples[i] = ir.Tuple{v}
		}
	}
	return m, nil
}

func collect(ctx context.Context, sess *engine.Session, result *Result) error {
	result.SessionID = sess.ID()
	result.Provenance = string(sess.Provenance())
	for _, a := range sess.History() {
		result.AddTrace(a)
	}
	for _, name := range sess.Relations() {
		facts, err := sess.Relation(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read relation %s: %w", name, err)
		}
		rendered := make([]string, len(facts))
		for i, f := range facts {
			rendered[i] = f.String()
		}
		result.State[name] = rendered
	}
	result.Declared = append(result.Declared, sess.DeclaredRelations()...)
	result.NextGroupID = sess.NextGroupID()

	digest, err := sess.HistoryDigest()
	if err != nil {
		return fmt.Errorf("failed to digest history: %w", err)
	}
	result.Digest = digest
	return nil
}
