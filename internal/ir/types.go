package ir

import "fmt"

// Type is a sealed interface over the engine's type model.
// Only Base, Family and Generic implement it.
type Type interface {
	isType()
	String() string
}

// Base is a concrete engine type such as i32 or String.
type Base struct {
	Name string
}

func (Base) isType() {}

func (b Base) String() string { return b.Name }

// Family is an abstract class of base types. Families are only valid in
// argument position; a signature never returns a Family.
type Family struct {
	Name string
}

func (Family) isType() {}

func (f Family) String() string { return f.Name }

// Generic is a type parameter bound to one Family. Inside a resolved
// FunctionSignature the ID is dense and indexes FunctionSignature.Generics.
type Generic struct {
	ID     int
	Family Family
}

func (Generic) isType() {}

// String renders the placeholder as the backend expects it (T0, T1, ...).
func (g Generic) String() string { return fmt.Sprintf("T%d", g.ID) }

// Type families understood by the engine.
var (
	FamilyAny             = Family{Name: "Any"}
	FamilyNumber          = Family{Name: "Number"}
	FamilyInteger         = Family{Name: "Integer"}
	FamilySignedInteger   = Family{Name: "SignedInteger"}
	FamilyUnsignedInteger = Family{Name: "UnsignedInteger"}
	FamilyFloat           = Family{Name: "Float"}
)

var familiesByName = map[string]Family{
	FamilyAny.Name:             FamilyAny,
	FamilyNumber.Name:          FamilyNumber,
	FamilyInteger.Name:         FamilyInteger,
	FamilySignedInteger.Name:   FamilySignedInteger,
	FamilyUnsignedInteger.Name: FamilyUnsignedInteger,
	FamilyFloat.Name:           FamilyFloat,
}

// baseTypeNames lists every base type keyword of the declaration grammar.
var baseTypeNames = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true,
	"bool": true, "char": true,
	"String": true, "Symbol": true,
	"DateTime": true, "Duration": true,
	"Entity": true, "Tensor": true,
}

// LookupFamily returns the Family with the given name.
func LookupFamily(name string) (Family, bool) {
	f, ok := familiesByName[name]
	return f, ok
}

// LookupBase returns the Base type with the given keyword.
func LookupBase(name string) (Base, bool) {
	if !baseTypeNames[name] {
		return Base{}, false
	}
	return Base{Name: name}, true
}

// Commonly used base types.
var (
	TypeBool   = Base{Name: "bool"}
	TypeString = Base{Name: "String"}
	TypeI32    = Base{Name: "i32"}
	TypeF32    = Base{Name: "f32"}
	TypeUsize  = Base{Name: "usize"}
)

// IsGeneric reports whether t is a Generic placeholder.
func IsGeneric(t Type) bool {
	_, ok := t.(Generic)
	return ok
}

// IsFamily reports whether t is a type Family.
func IsFamily(t Type) bool {
	_, ok := t.(Family)
	return ok
}
