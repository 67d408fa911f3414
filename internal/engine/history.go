package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/ir"
)

// record appends a successful call to the history and, when configured,
// to the history sink.
func (s *Session) record(ctx context.Context, method ir.Method, args []ir.Value, kwargs map[string]ir.Value) error {
	if len(kwargs) == 0 {
		kwargs = nil
	}
	a := ir.Action{
		Seq:    int64(len(s.history)),
		Method: method,
		Args:   args,
		Kwargs: kwargs,
	}
	s.history = append(s.history, a)
	if s.sink != nil {
		if err := s.persist(ctx, a); err != nil {
			return fmt.Errorf("persist %s: %w", method, err)
		}
	}
	return nil
}

func (s *Session) persist(ctx context.Context, a ir.Action) error {
	if !s.opened {
		if ss, ok := s.sink.(SessionSink); ok {
			if err := ss.OpenSession(ctx, s.id, s.parent, s.cfg); err != nil {
				return fmt.Errorf("open session: %w", err)
			}
		}
		s.opened = true
	}
	return s.sink.AppendAction(ctx, s.id, a)
}

// recordReserved records the group ids drawn since from by a call that
// is not otherwise in the history, so that replay reaches the same
// counter position.
func (s *Session) recordReserved(ctx context.Context, from int64) error {
	n := s.counter.Peek() - from
	if n <= 0 {
		return nil
	}
	return s.record(ctx, ir.MethodReserveGroupIDs, []ir.Value{ir.Int(n)}, nil)
}

// Parent returns the id of the session this one was cloned from, or ""
// for a root session.
func (s *Session) Parent() string {
	return s.parent
}

// History returns a copy of the replay log.
func (s *Session) History() []ir.Action {
	out := make([]ir.Action, len(s.history))
	for i, a := range s.history {
		out[i] = a.Clone()
	}
	return out
}

// HistoryDigest returns the content hash of the replay log.
func (s *Session) HistoryDigest() (string, error) {
	return ir.HistoryDigest(s.id, s.history)
}

// Replay rebuilds a session by re-issuing history against backend.
//
// Registered functions are not serializable; functions supplies the
// implementation for every register_function action, keyed by name, and
// its signature must render exactly as recorded.
func Replay(ctx context.Context, backend Backend, cfg config.Session, history []ir.Action, functions map[string]*ir.ForeignFunction, opts ...SessionOption) (*Session, error) {
	s, err := New(backend, cfg, opts...)
	if err != nil {
		return nil, err
	}
	for _, a := range history {
		if err := s.apply(ctx, a, functions); err != nil {
			return nil, fmt.Errorf("replay action %d (%s): %w", a.Seq, a.Method, err)
		}
	}
	s.logger.Info("session replayed",
		zap.Int("actions", len(history)),
		zap.Int64("next_group_id", s.counter.Peek()),
	)
	return s, nil
}

func (s *Session) apply(ctx context.Context, a ir.Action, functions map[string]*ir.ForeignFunction) error {
	switch a.Method {
	case ir.MethodAddRelation:
		name, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		fields, err := decodeFields(a.Arg(1))
		if err != nil {
			return err
		}
		var opts []RelationOption
		m, err := ir.DecodeInputMapping(a.Kwarg("input_mapping"))
		if err != nil {
			return err
		}
		if m != nil {
			opts = append(opts, WithInputMapping(m))
		}
		if k, ok := a.Kwarg("retain_topk").(ir.Int); ok {
			opts = append(opts, WithRetainTopK(int(k)))
		}
		if np, ok := a.Kwarg("non_probabilistic").(ir.Bool); ok && bool(np) {
			opts = append(opts, NonProbabilistic())
		}
		_, err = s.AddRelation(ctx, name, fields, opts...)
		return err

	case ir.MethodAddFacts:
		name, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		facts, err := ir.DecodeRawFacts(a.Arg(1))
		if err != nil {
			return err
		}
		groups, err := ir.DecodeGroups(a.Kwarg("disjunctions"))
		if err != nil {
			return err
		}
		return s.AddFacts(ctx, name, facts, groups)

	case ir.MethodAddRule:
		rule, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		var tag ir.Value
		if v, ok := a.Kwargs["tag"]; ok {
			tag = v
		}
		return s.AddRule(ctx, rule, tag)

	case ir.MethodAddProgram:
		src, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		return s.AddProgram(ctx, src)

	case ir.MethodRegisterFunction:
		name, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		text, err := stringArg(a, 1)
		if err != nil {
			return err
		}
		ff, ok := functions[name]
		if !ok {
			return ir.NewSignatureError(name, "no implementation supplied for replay")
		}
		if got := ff.Signature().String(); got != text {
			return ir.NewSignatureError(name, fmt.Sprintf("recorded as %q, replayed as %q", text, got))
		}
		return s.RegisterFunction(ctx, ff)

	case ir.MethodSetNonProbabilistic:
		name, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		np, ok := a.Arg(1).(ir.Bool)
		if !ok {
			return fmt.Errorf("arg 1: expected bool, got %T", a.Arg(1))
		}
		return s.SetNonProbabilistic(ctx, name, bool(np))

	case ir.MethodSetInputMapping:
		name, err := stringArg(a, 0)
		if err != nil {
			return err
		}
		m, err := ir.DecodeInputMapping(a.Arg(1))
		if err != nil {
			return err
		}
		return s.SetInputMapping(ctx, name, m)

	case ir.MethodReserveGroupIDs:
		n, ok := a.Arg(0).(ir.Int)
		if !ok || n < 0 {
			return fmt.Errorf("arg 0: expected a non-negative count, got %s", a.Arg(0))
		}
		from := s.counter.Peek()
		for range int64(n) {
			s.counter.Next()
		}
		return s.recordReserved(ctx, from)
	}
	return fmt.Errorf("unknown method %q", a.Method)
}

func stringArg(a ir.Action, i int) (string, error) {
	v, ok := a.Arg(i).(ir.String)
	if !ok {
		return "", fmt.Errorf("arg %d: expected string, got %T", i, a.Arg(i))
	}
	return string(v), nil
}
