package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// ErrConfiguration marks malformed wiring detected at startup. Fatal.
	ErrConfiguration = errors.New("invalid configuration")

	// Per-request provider errors. Recoverable: the caller may re-invoke
	// with a different provider id.
	ErrProviderNotFound  = errors.New("llm provider not found")
	ErrProviderFailure   = errors.New("llm provider request failed")
	ErrStreamUnsupported = errors.New("provider does not support streaming")

	// Client input errors, surfaced as 404/400 at the boundary.
	ErrSkillNotFound = errors.New("skill not found")
	ErrInvalidInput  = errors.New("invalid input")

	// Patch controller errors.
	ErrStalePatch = errors.New("document changed since preview was captured")
	ErrNoProposal = errors.New("no open patch proposal")

	// Transport classification sentinels for provider HTTP errors.
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrAuthInvalid     = errors.New("authentication failed")
	ErrContextOverflow = errors.New("context window exceeded")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "Registry.Register")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// ProviderError reports a completion failure from one named provider. The
// original cause is preserved untouched so the boundary can report which
// provider failed and why; it is never masked by retrying another provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProviderFailure) match any ProviderError.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailure }

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeConfiguration     ErrorCode = "CONFIGURATION"
	CodeProviderNotFound  ErrorCode = "PROVIDER_NOT_FOUND"
	CodeProviderFailure   ErrorCode = "PROVIDER_FAILURE"
	CodeStreamUnsupported ErrorCode = "STREAM_UNSUPPORTED"
	CodeSkillNotFound     ErrorCode = "SKILL_NOT_FOUND"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeStalePatch        ErrorCode = "STALE_PATCH"
	CodeNoProposal        ErrorCode = "NO_PROPOSAL"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
	CodeContextOverflow   ErrorCode = "CONTEXT_OVERFLOW"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrConfiguration:     CodeConfiguration,
	ErrProviderNotFound:  CodeProviderNotFound,
	ErrProviderFailure:   CodeProviderFailure,
	ErrStreamUnsupported: CodeStreamUnsupported,
	ErrSkillNotFound:     CodeSkillNotFound,
	ErrInvalidInput:      CodeInvalidInput,
	ErrStalePatch:        CodeStalePatch,
	ErrNoProposal:        CodeNoProposal,
	ErrRateLimit:         CodeRateLimit,
	ErrAuthInvalid:       CodeAuthInvalid,
	ErrContextOverflow:   CodeContextOverflow,
}

// ErrorCodeOf returns the code for err by walking its chain with errors.Is.
// Returns CodeUnknown when no sentinel matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
