package ilerr

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/util"
)

// DebugStacks makes errors capture and print the stacktrace of where they were created
var DebugStacks = false

const debugFullStacktrace = false

type ErrCode int

const (
	None ErrCode = iota
	TypeMismatch
	ParameterNameMismatch
	InfiniteType
	DuplicateTraitName
	IncompleteImplementation
	AmbiguousAttribute
	InvalidOverride
	NotImplemented
	NonExhaustivePattern
	NotConstantComputable
	NameNotFound
	NonCanonicalPredicate
	UnannotatedRecursion
)

func (c ErrCode) String() string {
	switch c {
	case TypeMismatch:
		return "TypeMismatch"
	case ParameterNameMismatch:
		return "ParameterNameMismatch"
	case InfiniteType:
		return "InfiniteType"
	case DuplicateTraitName:
		return "DuplicateTraitName"
	case IncompleteImplementation:
		return "IncompleteImplementation"
	case AmbiguousAttribute:
		return "AmbiguousAttribute"
	case InvalidOverride:
		return "InvalidOverride"
	case NotImplemented:
		return "NotImplemented"
	case NonExhaustivePattern:
		return "NonExhaustivePattern"
	case NotConstantComputable:
		return "NotConstantComputable"
	case NameNotFound:
		return "NameNotFound"
	case NonCanonicalPredicate:
		return "NonCanonicalPredicate"
	case UnannotatedRecursion:
		return "UnannotatedRecursion"
	default:
		return "Unclassified"
	}
}

type IleError interface {
	Error() string
	Code() ErrCode
	ast.Positioner

	withStack([]byte) IleError
	getStack() []byte
	withPos(ast.Positioner) IleError
}

func FormatWithCode(e IleError) string {
	if DebugStacks && e.getStack() != nil {
		stack := string(e.getStack())
		if lines := strings.Split(stack, "\n"); !debugFullStacktrace && len(lines) > 6 {
			stack = lines[6]
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

// New finalises an error, and records where it was created when DebugStacks is set.
// Errors without a position get an empty one, see At
func New[E IleError](err E) IleError {
	var e IleError = err
	if isUnpositioned(e) {
		e = e.withPos(ast.Range{})
	}
	if DebugStacks {
		return e.withStack(debug.Stack())
	}
	return e
}

func isUnpositioned(e IleError) (missing bool) {
	defer func() {
		if recover() != nil {
			missing = true
		}
	}()
	_ = e.Pos()
	return false
}

// At attaches pos to err when it does not already carry a position.
// Errors that are not an IleError become Unclassified
func At(err error, pos ast.Positioner) IleError {
	if err == nil {
		return nil
	}
	var ile IleError
	if !errors.As(err, &ile) {
		ile = New(Unclassified{From: err, Positioner: pos})
	}
	if isUnpositioned(ile) {
		ile = ile.withPos(ast.Range{})
	}
	if pos != nil && ile.Pos() == 0 && ile.End() == 0 {
		ile = ile.withPos(ast.RangeOf(pos))
	}
	return ile
}

// CodeOf returns the code of err, or None when it is not an IleError
func CodeOf(err error) ErrCode {
	var ile IleError
	if errors.As(err, &ile) {
		return ile.Code()
	}
	return None
}

type Unclassified struct {
	From error
	ast.Positioner
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Unwrap() error    { return e.From }
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e Unclassified) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewTypeMismatch struct {
	ast.Positioner
	Expected types.Type
	Actual   types.Type
	// Reason optionally explains which part of the types disagreed
	Reason string
	stack  []byte
}

func (e NewTypeMismatch) Error() string {
	msg := fmt.Sprintf("type mismatch: expected '%v', but found '%v'", e.Expected, e.Actual)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
func (e NewTypeMismatch) Code() ErrCode    { return TypeMismatch }
func (e NewTypeMismatch) getStack() []byte { return e.stack }
func (e NewTypeMismatch) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewTypeMismatch) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewParameterNameMismatch struct {
	ast.Positioner
	Index    int
	Expected string
	Actual   string
	stack    []byte
}

func (e NewParameterNameMismatch) Error() string {
	return fmt.Sprintf("parameter %d is named '%s', but '%s' was declared", e.Index, e.Actual, e.Expected)
}
func (e NewParameterNameMismatch) Code() ErrCode    { return ParameterNameMismatch }
func (e NewParameterNameMismatch) getStack() []byte { return e.stack }
func (e NewParameterNameMismatch) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewParameterNameMismatch) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewInfiniteType struct {
	ast.Positioner
	Var   *types.TypeVar
	Type  types.Type
	stack []byte
}

func (e NewInfiniteType) Error() string {
	return fmt.Sprintf("infinite type: '%v' occurs in '%v'", e.Var, e.Type)
}
func (e NewInfiniteType) Code() ErrCode    { return InfiniteType }
func (e NewInfiniteType) getStack() []byte { return e.stack }
func (e NewInfiniteType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewInfiniteType) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewDuplicateTraitName struct {
	ast.Positioner
	Name  string
	stack []byte
}

func (e NewDuplicateTraitName) Error() string {
	return fmt.Sprintf("'%s' is already declared", e.Name)
}
func (e NewDuplicateTraitName) Code() ErrCode    { return DuplicateTraitName }
func (e NewDuplicateTraitName) getStack() []byte { return e.stack }
func (e NewDuplicateTraitName) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewDuplicateTraitName) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

// AttrMismatch is an attribute whose bound type does not satisfy its requirement
type AttrMismatch struct {
	Attr     string
	Required types.Type
	Actual   types.Type
}

func (m AttrMismatch) String() string {
	return fmt.Sprintf("'%s' should be '%v' but is '%v'", m.Attr, m.Required, m.Actual)
}

type NewIncompleteImplementation struct {
	ast.Positioner
	Target     types.Type
	Trait      *types.TraitRef
	Missing    []string
	Mismatched []AttrMismatch
	stack      []byte
}

func (e NewIncompleteImplementation) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, "mismatched "+util.JoinString(e.Mismatched, ", "))
	}
	return fmt.Sprintf("incomplete implementation of '%v' for '%v': %s", e.Trait, e.Target, strings.Join(parts, "; "))
}
func (e NewIncompleteImplementation) Code() ErrCode    { return IncompleteImplementation }
func (e NewIncompleteImplementation) getStack() []byte { return e.stack }
func (e NewIncompleteImplementation) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewIncompleteImplementation) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewAmbiguousAttribute struct {
	ast.Positioner
	Target     types.Type
	Attr       string
	Candidates []*types.TraitRef
	stack      []byte
}

func (e NewAmbiguousAttribute) Error() string {
	return fmt.Sprintf("attribute '%s' of '%v' is ambiguous, it is defined by %s: qualify it with one of them",
		e.Attr, e.Target, util.JoinString(e.Candidates, ", "))
}
func (e NewAmbiguousAttribute) Code() ErrCode    { return AmbiguousAttribute }
func (e NewAmbiguousAttribute) getStack() []byte { return e.stack }
func (e NewAmbiguousAttribute) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewAmbiguousAttribute) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewInvalidOverride struct {
	ast.Positioner
	Trait    string
	Attr     string
	Base     types.Type
	Override types.Type
	Reason   string
	stack    []byte
}

func (e NewInvalidOverride) Error() string {
	return fmt.Sprintf("invalid redeclaration of '%s' in '%s' as '%v' (was '%v'): %s", e.Attr, e.Trait, e.Override, e.Base, e.Reason)
}
func (e NewInvalidOverride) Code() ErrCode    { return InvalidOverride }
func (e NewInvalidOverride) getStack() []byte { return e.stack }
func (e NewInvalidOverride) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewInvalidOverride) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewNotImplemented struct {
	ast.Positioner
	Target types.Type
	Trait  *types.TraitRef
	stack  []byte
}

func (e NewNotImplemented) Error() string {
	return fmt.Sprintf("'%v' does not implement '%v'", e.Target, e.Trait)
}
func (e NewNotImplemented) Code() ErrCode    { return NotImplemented }
func (e NewNotImplemented) getStack() []byte { return e.stack }
func (e NewNotImplemented) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewNotImplemented) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewNonExhaustivePattern struct {
	ast.Positioner
	Domain types.Type
	// Missing is a region of the domain no arm matches, one entry per parameter
	Missing []types.Type
	stack   []byte
}

func (e NewNonExhaustivePattern) Error() string {
	return fmt.Sprintf("patterns do not cover '%v': missing (%s)", e.Domain, util.JoinString(e.Missing, ", "))
}
func (e NewNonExhaustivePattern) Code() ErrCode    { return NonExhaustivePattern }
func (e NewNonExhaustivePattern) getStack() []byte { return e.stack }
func (e NewNonExhaustivePattern) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewNonExhaustivePattern) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewNotConstantComputable struct {
	ast.Positioner
	Reason string
	stack  []byte
}

func (e NewNotConstantComputable) Error() string {
	return "expression is not constant-computable: " + e.Reason
}
func (e NewNotConstantComputable) Code() ErrCode    { return NotConstantComputable }
func (e NewNotConstantComputable) getStack() []byte { return e.stack }
func (e NewNotConstantComputable) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewNotConstantComputable) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewNameNotFound struct {
	ast.Positioner
	Name string
	// Reason is set when the name existed but can no longer be resolved
	Reason string
	stack  []byte
}

func (e NewNameNotFound) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("name '%s' is not defined: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("name '%s' is not defined", e.Name)
}
func (e NewNameNotFound) Code() ErrCode    { return NameNotFound }
func (e NewNameNotFound) getStack() []byte { return e.stack }
func (e NewNameNotFound) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewNameNotFound) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

type NewNonCanonicalPredicate struct {
	ast.Positioner
	Reason string
	stack  []byte
}

func (e NewNonCanonicalPredicate) Error() string {
	return "refinement predicate is not supported: " + e.Reason
}
func (e NewNonCanonicalPredicate) Code() ErrCode    { return NonCanonicalPredicate }
func (e NewNonCanonicalPredicate) getStack() []byte { return e.stack }
func (e NewNonCanonicalPredicate) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewNonCanonicalPredicate) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}

// NewUnannotatedRecursion is a warning: the declaration is accepted, but nothing
// restricts which inputs it accepts beyond what its own recursion requires
type NewUnannotatedRecursion struct {
	ast.Positioner
	Name     string
	Inferred types.Type
	stack    []byte
}

func (e NewUnannotatedRecursion) Error() string {
	return fmt.Sprintf("recursive '%s' has no type annotation, so it accepts any input satisfying its recursion ('%v'): annotate it to restrict its domain", e.Name, e.Inferred)
}
func (e NewUnannotatedRecursion) Code() ErrCode    { return UnannotatedRecursion }
func (e NewUnannotatedRecursion) getStack() []byte { return e.stack }
func (e NewUnannotatedRecursion) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
func (e NewUnannotatedRecursion) withPos(pos ast.Positioner) IleError {
	e.Positioner = pos
	return e
}
