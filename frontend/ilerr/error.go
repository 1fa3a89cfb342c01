package ilerr

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/cottand/typecore/frontend/ast"
)

// Errors is a batch of independent errors, such as those of sibling pattern arms.
// A nil *Errors is an empty batch
type Errors struct {
	errs []IleError
}

func (r *Errors) With(err ...IleError) *Errors {
	if r == nil {
		return &Errors{errs: slices.Clone(err)}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []IleError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

// Unwrap exposes the batch to errors.Is and errors.As, which see the first match
func (r *Errors) Unwrap() []error {
	errs := make([]error, 0, len(r.Errors()))
	for _, e := range r.Errors() {
		errs = append(errs, e)
	}
	return errs
}

// Codes lists the code of every error, in order
func (r *Errors) Codes() []ErrCode {
	codes := make([]ErrCode, 0, len(r.Errors()))
	for _, e := range r.Errors() {
		codes = append(codes, e.Code())
	}
	return codes
}

// Error makes a batch usable as a plain error
func (r *Errors) Error() string {
	if !r.HasError() {
		return "no errors"
	}
	if len(r.errs) == 1 {
		return r.errs[0].Error()
	}
	msg := fmt.Sprintf("%d errors:", len(r.errs))
	for _, e := range r.errs {
		msg += "\n  " + e.Error()
	}
	return msg
}

// Sorted returns the errors ordered by position
func (r *Errors) Sorted() []IleError {
	sorted := slices.Clone(r.Errors())
	slices.SortStableFunc(sorted, func(a, b IleError) int {
		return int(ast.RangeOf(a).PosStart) - int(ast.RangeOf(b).PosStart)
	})
	return sorted
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
