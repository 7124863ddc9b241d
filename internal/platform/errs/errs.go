package errs

import (
	"fmt"
	"strings"
)

// Kind categorizes analysis failures for presentation and retry decisions.
type Kind int

const (
	// Unknown represents a failure no rule recognized.
	Unknown Kind = iota
	// Compatibility indicates the target site cannot be analyzed at all
	// (it crashed the renderer or blocks automated access).
	Compatibility
	// Network indicates a timeout or an unresolved host.
	Network
	// Content indicates the target's content could not be processed (HTTP 422).
	Content
	// Server indicates the analysis backend failed (HTTP 5xx).
	Server
	// Quota indicates the account ran out of analyses.
	Quota
)

var kindNames = map[Kind]string{
	Unknown:       "unknown",
	Compatibility: "compatibility",
	Network:       "network",
	Content:       "content",
	Server:        "server",
	Quota:         "quota",
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{Unknown, Compatibility, Network, Content, Server, Quota}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unrecognized names decode to Unknown.
func (k *Kind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for kind, n := range kindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	*k = Unknown
	return nil
}

// Retryable reports whether failures of this kind may be re-run without any
// corrective action from the user.
func (k Kind) Retryable() bool {
	switch k {
	case Network, Server, Unknown:
		return true
	default:
		return false
	}
}

// AnalysisError is a classified analysis failure.
type AnalysisError struct {
	Kind          Kind   `json:"kind" yaml:"kind"`
	Message       string `json:"message" yaml:"message"`
	OriginalError string `json:"original_error,omitempty" yaml:"original_error,omitempty"`
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	Retryable     bool   `json:"retryable" yaml:"retryable"`

	cause error
}

func (e *AnalysisError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// APIError is a non-2xx response from the Studio backend.
type APIError struct {
	StatusCode int
	Code       string // machine-readable code from the response body, if any
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("HTTP %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
