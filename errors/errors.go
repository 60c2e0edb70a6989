package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module discovery and instantiation
	PhaseSetup    Phase = "setup"    // setup entry point and its outputs
	PhaseDecode   Phase = "decode"   // guest memory to host structures
	PhaseEncode   Phase = "encode"   // host structures to wire bytes
	PhaseRender   Phase = "render"   // view entry point and tree decode
	PhaseCallback Phase = "callback" // callback invocation and update
	PhaseDispatch Phase = "dispatch" // dispatch loop operations
	PhaseValidate Phase = "validate" // policy validation
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds     Kind = "out_of_bounds"
	KindMalformedHeader Kind = "malformed_header"
	KindUnknownTag      Kind = "unknown_tag"
	KindDuplicateEntry  Kind = "duplicate_entry"
	KindInvalidUTF8     Kind = "invalid_utf8"
	KindInvalidEnum     Kind = "invalid_enum"
	KindInvalidData     Kind = "invalid_data"
	KindMissingExport   Kind = "missing_export"
	KindInstantiation   Kind = "instantiation"
	KindExhausted       Kind = "exhausted"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path where the error occurred
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Module sets the name of the guest module involved
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Value attaches the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets a human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// OutOfBounds creates a boundary-violation error for a guest memory access
func OutOfBounds(phase Phase, path []string, offset, size uint64, memLen uint64) *Error {
	return New(phase, KindOutOfBounds).
		Path(path...).
		Value(offset).
		Detail("range 0x%X-0x%X exceeds memory size 0x%X", offset, offset+size, memLen).
		Build()
}

// MalformedHeader creates an error for a wire table whose header does not
// match the supplied bytes
func MalformedHeader(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindMalformedHeader).
		Detail(detail, args...).
		Build()
}

// UnknownTag creates an error for an unrecognized tag or id on the wire
func UnknownTag(phase Phase, path []string, tag uint32) *Error {
	return New(phase, KindUnknownTag).
		Path(path...).
		Value(tag).
		Detail("unknown tag %d", tag).
		Build()
}

// DuplicateEntry creates a policy error for a repeated non-repeatable tag
func DuplicateEntry(phase Phase, tag uint16) *Error {
	return New(phase, KindDuplicateEntry).
		Value(tag).
		Detail("tag 0x%04X does not allow duplicates", tag).
		Build()
}

// InvalidUTF8 creates an error for text payloads that are not valid UTF-8
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return New(phase, KindInvalidUTF8).
		Path(path...).
		Value(preview).
		Detail("invalid UTF-8 sequence").
		Build()
}

// InvalidEnum creates an error for an out-of-range discriminant
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return New(phase, KindInvalidEnum).
		Path(path...).
		Value(value).
		Detail("invalid value %v for enum %s", value, enumType).
		Build()
}

// InvalidData creates an error for structurally invalid data
func InvalidData(phase Phase, path []string, detail string) *Error {
	return New(phase, KindInvalidData).
		Path(path...).
		Detail(detail).
		Build()
}

// MissingExport creates an error for a guest missing a required entry point
func MissingExport(module, export string) *Error {
	return New(PhaseLoad, KindMissingExport).
		Module(module).
		Detail("required export %q is missing or has the wrong signature", export).
		Build()
}

// Instantiation wraps a module instantiation failure
func Instantiation(module string, cause error) *Error {
	return New(PhaseLoad, KindInstantiation).
		Module(module).
		Cause(cause).
		Detail("instantiation failed").
		Build()
}

// Exhausted creates an error for a depleted id space
func Exhausted(phase Phase, what string) *Error {
	return New(phase, KindExhausted).
		Detail("%s exhausted", what).
		Build()
}

// NotFound creates an error for a missing named item
func NotFound(phase Phase, what, name string) *Error {
	return New(phase, KindNotFound).
		Detail("%s %q not found", what, name).
		Build()
}

// InvalidInput creates an error for invalid input
func InvalidInput(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInvalidInput).
		Detail(detail, args...).
		Build()
}

// Load wraps a module loading failure
func Load(detail string, cause error) *Error {
	return New(PhaseLoad, KindInvalidData).
		Cause(cause).
		Detail(detail).
		Build()
}
