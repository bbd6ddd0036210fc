// Package errors defines the typed error surface of the query compiler
// pipeline (spec.md §7). Every pipeline stage fails, if at all, with one of
// a closed set of error kinds; callers distinguish them with errors.Is
// against the package-level Kind values below, following the
// gopkg.in/src-d/go-errors.v1 convention the teacher repo uses for its own
// auth errors (auth/auth.go).
package errors

import (
	"fmt"
	"strings"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

// Kind values. Exhaustive per spec.md §7.
var (
	// Syntax is returned by core/syn when the source text is malformed.
	Syntax = goerrors.NewKind("syntax error: %s")
	// Bind is returned by core/tr/bind for name resolution, arity, and
	// coercion failures.
	Bind = goerrors.NewKind("%s")
	// Encode is returned by core/tr/encode for unresolvable plural
	// expressions and invalid casts.
	Encode = goerrors.NewKind("%s")
	// Compile is returned by core/tr/compile and core/tr/assemble when an
	// internal lowering invariant is violated. Its presence always
	// indicates a bug in the pipeline, not a user error.
	Compile = goerrors.NewKind("internal error: %s")
	// Dispatch is returned by core/adapter when a realization is
	// ambiguous or missing.
	Dispatch = goerrors.NewKind("%s")
	// Engine is returned by the execute package when the database driver
	// reports a failure.
	Engine = goerrors.NewKind("%s")
	// Permission is returned when a write is attempted without the
	// can_write capability.
	Permission = goerrors.NewKind("%s")
	// Cancelled is returned when a cancellation token fires mid-pipeline
	// or the driver reports a cancelled operation.
	Cancelled = goerrors.NewKind("operation cancelled")
)

// Span is a half-open source range used to annotate errors with a caret-able
// excerpt, mirroring core/syn.Syntax location tracking.
type Span struct {
	Source      string
	Start, End  int
	Line, Col   int
}

func (s Span) String() string {
	if s.Source == "" {
		return ""
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Col)
}

// Frame is one entry of the diagnostic stack every pipeline boundary adds
// to an error as it propagates ("while binding X", "while inserting record
// #N"), following original_source/src/htsql/error.py's `mark` chaining.
type Frame struct {
	Message string
	Span    *Span
	Quote   string
}

// Error wraps a Kind-classified cause with a stack of Frames and an
// optional list of valid alternatives for "did you mean" hints (spec.md
// §4.5, §8 scenario 6).
type Error struct {
	Cause        error
	Frames       []Frame
	Alternatives []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Cause.Error())
	for _, f := range e.Frames {
		b.WriteString("\nwhile ")
		b.WriteString(f.Message)
		if f.Quote != "" {
			b.WriteString(": ")
			b.WriteString(f.Quote)
		}
	}
	if len(e.Alternatives) > 0 {
		b.WriteString(", did you mean: ")
		b.WriteString(strings.Join(e.Alternatives, ", "))
		b.WriteString("?")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap annotates cause with a new outermost frame. If cause is already an
// *Error, a new *Error is returned with the frame prepended to a copy of
// its frame stack (cause itself is left unchanged); otherwise a new *Error
// is created around it.
func Wrap(cause error, message string, span *Span) *Error {
	frame := Frame{Message: message, Span: span}
	if e, ok := cause.(*Error); ok {
		frames := make([]Frame, 0, len(e.Frames)+1)
		frames = append(frames, frame)
		frames = append(frames, e.Frames...)
		return &Error{Cause: e.Cause, Frames: frames, Alternatives: e.Alternatives}
	}
	return &Error{Cause: cause, Frames: []Frame{frame}}
}

// WithAlternatives attaches a "did you mean" candidate list to an error.
func WithAlternatives(cause error, alternatives []string) *Error {
	if e, ok := cause.(*Error); ok {
		e.Alternatives = alternatives
		return e
	}
	return &Error{Cause: cause, Alternatives: alternatives}
}

// Quoted attaches a literal source fragment to the most recent frame, used
// when rendering a caret-marked excerpt in debug mode.
func Quoted(err *Error, quote string) *Error {
	if len(err.Frames) == 0 {
		err.Frames = append(err.Frames, Frame{})
	}
	err.Frames[0].Quote = quote
	return err
}
