// Package errors provides structured error types for the widget runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: field path, the offending
// guest module, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("arena", "elements").
//		Module("clock").
//		Detail("element index 9 past table end").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseDecode, path, offset, size, memLen)
//	err := errors.DuplicateEntry(errors.PhaseValidate, 0x0001)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when their Phase and Kind agree,
// which is how callers distinguish recoverable boundary violations from
// permanent instantiation failures.
package errors
