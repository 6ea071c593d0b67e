// Package errors provides structured error types for the surface host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The startup taxonomy is ArtifactNotFound, ArtifactInvalid, Linkage and
// Instantiation; the dispatch bridge reports ChannelClosed and Reentrant; a
// failing component reports EntryPointTrap or EntryPointError.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseHost, errors.KindInvalidInput).
//		Path("wasi:surface/surface", "create-window").
//		Detail("width must be positive").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ArtifactNotFound(path, cause)
//	err := errors.ChannelClosed()
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching with errors.Is compares Phase and Kind, so the exported sentinels
// (ErrChannelClosed, ErrLinkage, ...) match any error of that category.
package errors
