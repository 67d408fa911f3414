package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/compiler"
	"github.com/roach88/tagbridge/internal/ir"
)

// RegisterFunction exposes ff to engine programs under its rendered
// signature.
func (s *Session) RegisterFunction(ctx context.Context, ff *ir.ForeignFunction) error {
	if ff == nil {
		return ir.NewSignatureError("", "nil foreign function")
	}
	text := ff.Signature().String()
	if err := s.backend.RegisterFunction(ctx, text, ff); err != nil {
		return fmt.Errorf("register %s: %w", ff.Name(), err)
	}
	s.functions[ff.Name()] = ff

	kwargs := map[string]ir.Value{}
	if ff.SuppressWarning() {
		kwargs["suppress_warning"] = ir.Bool(true)
	}
	if err := s.record(ctx, ir.MethodRegisterFunction, []ir.Value{ir.String(ff.Name()), ir.String(text)}, kwargs); err != nil {
		return err
	}
	s.logger.Debug("function registered", zap.String("signature", text))
	return nil
}

// RegisterFunc resolves a Go function with compiler.FromFunc and registers
// it.
func (s *Session) RegisterFunc(ctx context.Context, name string, fn any, opts compiler.Options) (*ir.ForeignFunction, error) {
	ff, err := compiler.FromFunc(name, fn, opts)
	if err != nil {
		return nil, err
	}
	if err := s.RegisterFunction(ctx, ff); err != nil {
		return nil, err
	}
	return ff, nil
}

// ApplyManifest declares every relation of m and registers every function
// that has an implementation in impls. A manifest function without an
// implementation is a SignatureError.
func (s *Session) ApplyManifest(ctx context.Context, m *compiler.Manifest, impls map[string]ir.CallFunc) error {
	for _, r := range m.Relations {
		var fields any = r.Types
		if r.Singleton {
			fields = r.Types[0]
		}
		var opts []RelationOption
		if r.NonProbabilistic {
			opts = append(opts, NonProbabilistic())
		}
		if r.RetainTopK > 0 {
			opts = append(opts, WithRetainTopK(r.RetainTopK))
		}
		if _, err := s.AddRelation(ctx, r.Name, fields, opts...); err != nil {
			return err
		}
	}

	var errs []error
	for _, f := range m.Functions {
		name := f.Signature.Name()
		impl, ok := impls[name]
		if !ok {
			errs = append(errs, ir.NewSignatureError(name, "manifest declares a function with no implementation"))
			continue
		}
		if err := s.RegisterFunction(ctx, f.Bind(impl)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddRule adds one rule. tag is nil for an untagged rule.
func (s *Session) AddRule(ctx context.Context, rule string, tag ir.Value) error {
	if tag != nil && !ir.IsNull(tag) && !s.RequiresTag() {
		s.logger.Warn("rule tag ignored by tag-free provenance", zap.String("rule", rule))
	}
	if err := s.backend.AddRule(ctx, rule, tag); err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	kwargs := map[string]ir.Value{}
	if tag != nil {
		kwargs["tag"] = tag
	}
	return s.record(ctx, ir.MethodAddRule, []ir.Value{ir.String(rule)}, kwargs)
}

// AddProgram adds a whole program text.
func (s *Session) AddProgram(ctx context.Context, src string) error {
	if err := s.backend.AddProgram(ctx, src); err != nil {
		return fmt.Errorf("add program: %w", err)
	}
	return s.record(ctx, ir.MethodAddProgram, []ir.Value{ir.String(src)}, nil)
}

// Run evaluates the program. Running is not recorded: replaying a history
// rebuilds inputs, and the caller runs again.
func (s *Session) Run(ctx context.Context) error {
	if err := s.backend.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// Relation returns the computed facts of name.
func (s *Session) Relation(ctx context.Context, name string) ([]ir.FactElement, error) {
	return s.backend.Relation(ctx, canonicalName(name))
}
