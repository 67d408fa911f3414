package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tagbridge/internal/ir"
)

// Manifest is a compiled binding manifest: the relations a program expects
// and the signatures of the foreign functions it calls.
type Manifest struct {
	Relations []RelationDecl
	Functions []FunctionDecl
}

// RelationDecl is one relation entry of a manifest.
type RelationDecl struct {
	Name             string
	Types            []ir.Base
	Singleton        bool
	NonProbabilistic bool
	RetainTopK       int
	Pos              token.Pos
}

// Decl renders the backend declaration string.
func (r RelationDecl) Decl() string { return FormatRelationDecl(r.Name, r.Types) }

// FunctionDecl is one foreign function entry of a manifest. The host
// callable is bound later with Bind.
type FunctionDecl struct {
	Signature       *ir.FunctionSignature
	SuppressWarning bool
	Pos             token.Pos
}

// Bind attaches a host callable to the declared signature.
func (f FunctionDecl) Bind(fn ir.CallFunc) *ir.ForeignFunction {
	return ir.NewForeignFunction(f.Signature, fn, f.SuppressWarning)
}

// CompileError represents a manifest compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// CompileManifest reads relation and function declarations from a CUE
// value of the form:
//
//	relation: edge: {fields: ["i32", "i32"], non_probabilistic: true}
//	relation: name: {fields: "String"}
//	function: max: {generics: {T: "Number"}, args: ["T", "T"], return: "T"}
func CompileManifest(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	m := &Manifest{}

	if rels := v.LookupPath(cue.ParsePath("relation")); rels.Exists() {
		iter, err := rels.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			rel, err := compileRelation(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			m.Relations = append(m.Relations, rel)
		}
	}

	if fns := v.LookupPath(cue.ParsePath("function")); fns.Exists() {
		iter, err := fns.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fn, err := compileFunction(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			m.Functions = append(m.Functions, fn)
		}
	}

	return m, nil
}

func compileRelation(name string, v cue.Value) (RelationDecl, error) {
	rel := RelationDecl{Name: name, Pos: v.Pos()}
	if !validRelationName(name) {
		return rel, &CompileError{Field: "relation." + name, Message: "invalid relation name", Pos: v.Pos()}
	}

	fields := v.LookupPath(cue.ParsePath("fields"))
	if !fields.Exists() {
		return rel, &CompileError{Field: "relation." + name + ".fields", Message: "fields is required", Pos: v.Pos()}
	}

	if single, err := fields.String(); err == nil {
		b, ok := ir.LookupBase(single)
		if !ok {
			return rel, &CompileError{Field: "relation." + name + ".fields", Message: fmt.Sprintf("unknown base type %q", single), Pos: fields.Pos()}
		}
		rel.Types = []ir.Base{b}
		rel.Singleton = true
	} else {
		names, err := stringList(fields)
		if err != nil {
			return rel, err
		}
		rel.Types = make([]ir.Base, len(names))
		for i, n := range names {
			b, ok := ir.LookupBase(n)
			if !ok {
				return rel, &CompileError{Field: fmt.Sprintf("relation.%s.fields[%d]", name, i), Message: fmt.Sprintf("unknown base type %q", n), Pos: fields.Pos()}
			}
			rel.Types[i] = b
		}
	}

	if np := v.LookupPath(cue.ParsePath("non_probabilistic")); np.Exists() {
		b, err := np.Bool()
		if err != nil {
			return rel, formatCUEError(err)
		}
		rel.NonProbabilistic = b
	}
	if k := v.LookupPath(cue.ParsePath("retain_topk")); k.Exists() {
		n, err := k.Int64()
		if err != nil {
			return rel, formatCUEError(err)
		}
		if n < 0 {
			return rel, &CompileError{Field: "relation." + name + ".retain_topk", Message: "must be non-negative", Pos: k.Pos()}
		}
		rel.RetainTopK = int(n)
	}
	return rel, nil
}

func compileFunction(name string, v cue.Value) (FunctionDecl, error) {
	decl := FunctionDecl{Pos: v.Pos()}

	params := map[string]TypeParam{}
	if gens := v.LookupPath(cue.ParsePath("generics")); gens.Exists() {
		iter, err := gens.Fields()
		if err != nil {
			return decl, formatCUEError(err)
		}
		for iter.Next() {
			fam, err := iter.Value().String()
			if err != nil {
				return decl, formatCUEError(err)
			}
			tp, err := NewTypeParam(iter.Label(), fam)
			if err != nil {
				return decl, &CompileError{Field: "function." + name + ".generics." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
			}
			params[iter.Label()] = tp
		}
	}
	annotate := func(typeName string) Annotation {
		if tp, ok := params[typeName]; ok {
			return tp
		}
		return typeName
	}

	c := Callable{Name: name}
	for _, section := range []string{"args", "optional"} {
		sv := v.LookupPath(cue.ParsePath(section))
		if !sv.Exists() {
			continue
		}
		names, err := stringList(sv)
		if err != nil {
			return decl, err
		}
		for _, n := range names {
			c.Params = append(c.Params, Param{Type: annotate(n), HasDefault: section == "optional"})
		}
	}
	if va := v.LookupPath(cue.ParsePath("variadic")); va.Exists() {
		n, err := va.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		c.Params = append(c.Params, Param{Type: annotate(n), Variadic: true})
	}
	if rv := v.LookupPath(cue.ParsePath("return")); rv.Exists() {
		n, err := rv.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		c.Return = annotate(n)
		c.HasReturn = true
	}

	opts := Options{}
	if sw := v.LookupPath(cue.ParsePath("suppress_warning")); sw.Exists() {
		b, err := sw.Bool()
		if err != nil {
			return decl, formatCUEError(err)
		}
		opts.SuppressWarning = b
		decl.SuppressWarning = b
	}

	ff, err := Resolve(c, opts)
	if err != nil {
		return decl, &CompileError{Field: "function." + name, Message: err.Error(), Pos: v.Pos()}
	}
	decl.Signature = ff.Signature()
	return decl, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileManifestString compiles manifest source text.
func CompileManifestString(src string) (*Manifest, error) {
	ctx := cuecontext.New()
	return CompileManifest(ctx.CompileString(src))
}

// LoadManifestDir loads every CUE file in dir as one instance and compiles it.
func LoadManifestDir(dir string) (*Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("manifest directory: not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileManifest(value)
}
