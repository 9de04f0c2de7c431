// Package xerrors adds call-site and stack information to errors so the
// logger can report where a failure originated. Wrappers stay transparent
// to errors.Is and errors.As.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }

type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) PC() uintptr   { return w.pc }

// skip counts frames above the caller of the exported function
func stack(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+3, pcs)
	return pcs[:n]
}

func caller(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(skip+3, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// New returns an error with msg and the caller's stack.
func New(msg string) error {
	return &stacked{err: errors.New(msg), pcs: stack(0)}
}

// Newf is New with formatting. %w verbs wrap as with fmt.Errorf.
func Newf(format string, args ...any) error {
	return &stacked{err: fmt.Errorf(format, args...), pcs: stack(0)}
}

// WithStack attaches the caller's stack to err. nil stays nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &stacked{err: err, pcs: stack(0)}
}

// EnsureTrace attaches a stack only when nothing in the chain carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return &stacked{err: err, pcs: stack(0)}
}

// Wrap prefixes err with msg and records the caller. nil stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: caller(0)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: caller(0)}
}
