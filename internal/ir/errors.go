package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes binding errors.
type ErrorCode string

const (
	// ErrCodeSignature indicates a malformed foreign function declaration.
	ErrCodeSignature ErrorCode = "SIGNATURE"

	// ErrCodeTypeResolution indicates an annotation that maps to no known Type.
	ErrCodeTypeResolution ErrorCode = "TYPE_RESOLUTION"

	// ErrCodeRelationConflict indicates an incompatible relation re-declaration.
	ErrCodeRelationConflict ErrorCode = "RELATION_CONFLICT"

	// ErrCodeTupleShape indicates an arity or type mismatch on submitted facts.
	ErrCodeTupleShape ErrorCode = "TUPLE_SHAPE"

	// ErrCodeUnknownRelation indicates an operation on an undeclared relation.
	ErrCodeUnknownRelation ErrorCode = "UNKNOWN_RELATION"

	// ErrCodeConfiguration indicates a required capability is absent.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeDuplicateName indicates a foreign function name is already registered.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeDisjunction indicates structurally invalid disjunction groups.
	ErrCodeDisjunction ErrorCode = "DISJUNCTION"
)

// Error is the single error type raised by the binding layer.
//
// Every error carries enough context to diagnose it without re-execution:
// the offending relation or function name, the annotation that failed to
// resolve, or the batch index that was rejected.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the relation or function involved, if any.
	Name string

	// Annotation is the unresolvable annotation, rendered with %v.
	Annotation string

	// Index is the offending element or parameter index, or -1.
	Index int

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var ctx []string
	if e.Name != "" {
		ctx = append(ctx, "name="+e.Name)
	}
	if e.Annotation != "" {
		ctx = append(ctx, "annotation="+e.Annotation)
	}
	if e.Index >= 0 {
		ctx = append(ctx, fmt.Sprintf("index=%d", e.Index))
	}
	if len(ctx) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(ctx, ", "))
}

// HasCode reports whether err wraps an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsSignatureError returns true if err is a SignatureError.
func IsSignatureError(err error) bool { return HasCode(err, ErrCodeSignature) }

// IsTypeResolutionError returns true if err is a TypeResolutionError.
func IsTypeResolutionError(err error) bool { return HasCode(err, ErrCodeTypeResolution) }

// IsRelationConflictError returns true if err is a RelationConflictError.
func IsRelationConflictError(err error) bool { return HasCode(err, ErrCodeRelationConflict) }

// IsTupleShapeError returns true if err is a TupleShapeError.
func IsTupleShapeError(err error) bool { return HasCode(err, ErrCodeTupleShape) }

// IsUnknownRelationError returns true if err is an UnknownRelationError.
func IsUnknownRelationError(err error) bool { return HasCode(err, ErrCodeUnknownRelation) }

// IsConfigurationError returns true if err is a ConfigurationError.
func IsConfigurationError(err error) bool { return HasCode(err, ErrCodeConfiguration) }

// IsDuplicateNameError returns true if err is a DuplicateNameError.
func IsDuplicateNameError(err error) bool { return HasCode(err, ErrCodeDuplicateName) }

// IsDisjunctionError returns true if err is a DisjunctionError.
func IsDisjunctionError(err error) bool { return HasCode(err, ErrCodeDisjunction) }

// NewSignatureError creates an Error for a malformed function declaration.
func NewSignatureError(function, message string) *Error {
	return &Error{Code: ErrCodeSignature, Message: message, Name: function, Index: -1}
}

// NewParamSignatureError creates a SignatureError pointing at one parameter.
func NewParamSignatureError(function string, index int, param, message string) *Error {
	e := NewSignatureError(function, message)
	e.Index = index
	if param != "" {
		e.Details = map[string]string{"param": param}
	}
	return e
}

// NewTypeResolutionError creates an Error for an annotation with no Type.
func NewTypeResolutionError(function string, annotation any) *Error {
	return &Error{
		Code:       ErrCodeTypeResolution,
		Message:    "unknown type annotation",
		Name:       function,
		Annotation: fmt.Sprintf("%v", annotation),
		Index:      -1,
	}
}

// NewRelationConflictError creates an Error for an incompatible re-declaration.
func NewRelationConflictError(relation, existing, requested string) *Error {
	return &Error{
		Code:    ErrCodeRelationConflict,
		Message: fmt.Sprintf("relation already declared as %s, cannot redeclare as %s", existing, requested),
		Name:    relation,
		Index:   -1,
		Details: map[string]string{
			"existing":  existing,
			"requested": requested,
		},
	}
}

// NewTupleShapeError creates an Error for a fact that does not fit its relation.
func NewTupleShapeError(relation string, index int, message string) *Error {
	return &Error{Code: ErrCodeTupleShape, Message: message, Name: relation, Index: index}
}

// NewUnknownRelationError creates an Error for an undeclared relation.
func NewUnknownRelationError(relation string) *Error {
	return &Error{Code: ErrCodeUnknownRelation, Message: "unknown relation", Name: relation, Index: -1}
}

// NewConfigurationError creates an Error for a missing capability.
func NewConfigurationError(message string) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: message, Index: -1}
}

// NewDuplicateNameError creates an Error for a re-registered function name.
func NewDuplicateNameError(function string) *Error {
	return &Error{Code: ErrCodeDuplicateName, Message: "foreign function already registered", Name: function, Index: -1}
}

// NewDisjunctionError creates an Error for invalid disjunction group input.
func NewDisjunctionError(index int, message string) *Error {
	return &Error{Code: ErrCodeDisjunction, Message: message, Index: index}
}
