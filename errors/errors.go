package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // artifact reading and compilation
	PhaseLinking     Phase = "linking"     // capability linkage
	PhaseInstantiate Phase = "instantiate" // module instantiation
	PhaseRuntime     Phase = "runtime"     // entry point execution
	PhaseDispatch    Phase = "dispatch"    // main-thread dispatch
	PhaseHost        Phase = "host"        // host capability operations
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindArtifactNotFound Kind = "artifact_not_found"
	KindArtifactInvalid  Kind = "artifact_invalid"
	KindLinkage          Kind = "linkage"
	KindInstantiation    Kind = "instantiation"
	KindChannelClosed    Kind = "channel_closed"
	KindEntryPointTrap   Kind = "entry_point_trap"
	KindEntryPointError  Kind = "entry_point_error"
	KindReentrant        Kind = "reentrant"
	KindPanic            Kind = "panic"
	KindAlreadyRunning   Kind = "already_running"
	KindBadHandle        Kind = "bad_handle"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidState     Kind = "invalid_state"
	KindNotFound         Kind = "not_found"
	KindRegistration     Kind = "registration"
	KindUnsupported      Kind = "unsupported"
)

// Sentinels for errors.Is. Matching is by Phase and Kind only.
var (
	ErrArtifactNotFound = &Error{Phase: PhaseLoad, Kind: KindArtifactNotFound}
	ErrArtifactInvalid  = &Error{Phase: PhaseLoad, Kind: KindArtifactInvalid}
	ErrLinkage          = &Error{Phase: PhaseLinking, Kind: KindLinkage}
	ErrInstantiation    = &Error{Phase: PhaseInstantiate, Kind: KindInstantiation}
	ErrChannelClosed    = &Error{Phase: PhaseDispatch, Kind: KindChannelClosed}
	ErrReentrant        = &Error{Phase: PhaseDispatch, Kind: KindReentrant}
	ErrEntryPointTrap   = &Error{Phase: PhaseRuntime, Kind: KindEntryPointTrap}
	ErrEntryPointError  = &Error{Phase: PhaseRuntime, Kind: KindEntryPointError}
)

// Error is the structured error type used throughout the host
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
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

// Path sets the resource path (namespace, function, ...)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ArtifactNotFound creates an error for a missing artifact path
func ArtifactNotFound(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindArtifactNotFound,
		Detail: fmt.Sprintf("component artifact %q not found", path),
		Value:  path,
		Cause:  cause,
	}
}

// ArtifactInvalid creates an error for an unreadable or uncompilable artifact
func ArtifactInvalid(path, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindArtifactInvalid,
		Detail: fmt.Sprintf("%s: %s", path, detail),
		Value:  path,
		Cause:  cause,
	}
}

// Linkage creates a linkage error; cause is usually a *MissingImportsError
func Linkage(cause error) *Error {
	return &Error{
		Phase:  PhaseLinking,
		Kind:   KindLinkage,
		Detail: "link host capabilities",
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate component",
		Cause:  cause,
	}
}

// ChannelClosed creates the error returned for work submitted to, or pending
// on, a terminated main-thread executor
func ChannelClosed() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindChannelClosed,
		Detail: "main-thread executor has shut down",
	}
}

// Reentrant creates the error for awaiting main-thread work from the main thread
func Reentrant() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindReentrant,
		Detail: "cannot await main-thread work from the main thread",
	}
}

// Panicked wraps a value recovered from a dispatched closure
func Panicked(v any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindPanic,
		Detail: fmt.Sprintf("dispatched work panicked: %v", v),
		Value:  v,
	}
}

// EntryPointTrap creates an error for a host-level failure or trap in the entry point
func EntryPointTrap(entry string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindEntryPointTrap,
		Path:   []string{entry},
		Detail: "entry point trapped",
		Cause:  cause,
	}
}

// EntryPointError creates an error for a component-reported failure
func EntryPointError(entry string, code uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindEntryPointError,
		Path:   []string{entry},
		Detail: fmt.Sprintf("entry point returned error code %d", code),
		Value:  code,
	}
}

// BadHandle creates an error for an unknown or mistyped table handle
func BadHandle(handle uint32, want string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindBadHandle,
		Detail: fmt.Sprintf("handle %d is not a live %s", handle, want),
		Value:  handle,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidState creates an error for an operation attempted in the wrong lifecycle state
func InvalidState(phase Phase, op, state string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("cannot %s in state %s", op, state),
	}
}

// Registration creates a registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Namespace string // e.g., "wasi:surface/surface"
	Function  string // e.g., "create-window"
	Reason    string // empty when absent, otherwise why the offered function does not fit
}

// MissingImportsError is returned when linking fails because the host does
// not offer a required capability
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "namespace#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		ns, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, MissingImport{
			Namespace: ns,
			Function:  fn,
		})
	}
	return result
}

// Add records one unresolved import
func (e *MissingImportsError) Add(namespace, function, reason string) {
	e.Imports = append(e.Imports, MissingImport{
		Namespace: namespace,
		Function:  function,
		Reason:    reason,
	})
}

func parseImportKey(key string) (namespace, function string) {
	ns, fn, found := strings.Cut(key, "#")
	if found {
		return ns, fn
	}
	return key, ""
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[linking] linkage: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d host function(s):\n", len(e.Imports)))

	// Group by namespace for cleaner output
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		line := imp.Function
		if imp.Reason != "" {
			line += " (" + imp.Reason + ")"
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], line)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, fn := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}
