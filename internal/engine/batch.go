package engine

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tagbridge/internal/ir"
	"github.com/roach88/tagbridge/internal/normalize"
)

// BatchInput is one relation's facts within a batch item.
type BatchInput struct {
	Facts        []ir.RawFact
	Disjunctions [][]int
}

// BatchItem is one independent evaluation: facts per relation, plus an
// optional output relation overriding the batch default.
type BatchItem struct {
	Inputs map[string]BatchInput
	Output string
}

// BatchOption configures RunBatch.
type BatchOption func(*batchOptions)

type batchOptions struct {
	requireDifferentiable bool
}

// RequireDifferentiable fails the batch with a ConfigurationError unless
// the session's provenance is differentiable.
func RequireDifferentiable() BatchOption {
	return func(o *batchOptions) { o.requireDifferentiable = true }
}

// batchJob is an item prepared for a worker: inputs in a fixed relation
// order, each with its own block of reserved group ids.
type batchJob struct {
	output string
	inputs []batchJobInput
}

type batchJobInput struct {
	shape    *ir.RelationShape
	input    BatchInput
	groups   int
	reserved *normalize.Reserved
}

// RunBatch evaluates each item on its own clone of the backend and
// returns the output relation of each, in item order.
//
// Group ids are reserved from the session counter item by item, in order,
// before any work fans out, so results do not depend on scheduling. Items
// run on at most cfg.BatchWorkers goroutines. The session's own backend
// is left untouched; the ids the batch draws are recorded as a single
// reserve_group_ids action.
func (s *Session) RunBatch(ctx context.Context, items []BatchItem, output string, opts ...BatchOption) ([][]ir.FactElement, error) {
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.requireDifferentiable && !s.IsDifferentiable() {
		return nil, ir.NewConfigurationError(fmt.Sprintf("batch requires a differentiable provenance, session runs %s", s.cfg.Provenance))
	}

	from := s.counter.Peek()
	jobs, err := s.prepareBatch(items, output)
	if err != nil {
		return nil, err
	}
	if err := s.recordReserved(ctx, from); err != nil {
		return nil, err
	}

	mode := s.mode()
	results := make([][]ir.FactElement, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchWorkers)
	for i, job := range jobs {
		g.Go(func() error {
			out, err := s.runJob(gctx, job, mode)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("batch finished",
		zap.Int("items", len(items)),
		zap.Int64("next_group_id", s.counter.Peek()),
	)
	return results, nil
}

func (s *Session) prepareBatch(items []BatchItem, output string) ([]batchJob, error) {
	disj := s.SupportsDisjunctions()
	jobs := make([]batchJob, len(items))
	for i, item := range items {
		job := batchJob{output: canonicalName(output)}
		if item.Output != "" {
			job.output = canonicalName(item.Output)
		}
		if job.output == "" {
			return nil, fmt.Errorf("batch item %d: no output relation", i)
		}

		names := make([]string, 0, len(item.Inputs))
		for name := range item.Inputs {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			in := item.Inputs[name]
			sh, err := s.shape(name)
			if err != nil {
				return nil, fmt.Errorf("batch item %d: %w", i, err)
			}
			n := 0
			if disj {
				if err := normalize.ValidateGroups(len(in.Facts), in.Disjunctions); err != nil {
					return nil, fmt.Errorf("batch item %d, relation %s: %w", i, sh.Name, err)
				}
				n = len(in.Disjunctions)
			}
			job.inputs = append(job.inputs, batchJobInput{shape: sh.Clone(), input: in, groups: n})
		}
		jobs[i] = job
	}

	// Reserve only once the whole batch is known to be valid.
	for i := range jobs {
		for j := range jobs[i].inputs {
			in := &jobs[i].inputs[j]
			in.reserved = normalize.Reserve(s.counter, in.groups)
		}
	}
	return jobs, nil
}

func (s *Session) runJob(ctx context.Context, job batchJob, mode normalize.Mode) ([]ir.FactElement, error) {
	b, err := s.backend.Clone(ctx)
	if err != nil {
		return nil, fmt.Errorf("clone backend: %w", err)
	}
	for _, in := range job.inputs {
		elems, err := normalize.Normalize(in.shape, in.input.Facts, in.input.Disjunctions, mode, in.reserved)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", in.shape.Name, err)
		}
		if err := b.SubmitFacts(ctx, in.shape.Name, elems); err != nil {
			return nil, fmt.Errorf("relation %s: %w", in.shape.Name, err)
		}
	}
	if err := b.Run(ctx); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return b.Relation(ctx, job.output)
}
