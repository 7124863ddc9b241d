package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// rule maps a group of lowercase substrings to a kind and its message.
type rule struct {
	kind    Kind
	markers []string
	message func(subject string) string
}

// rules are checked in order and the first match wins. Specific causes come
// before the broad network and server groups that would otherwise shadow them.
var rules = []rule{
	{
		kind:    Compatibility,
		markers: []string{"page crashed", "crashed", "crash", "target closed", "incompatible", "not supported"},
		message: func(s string) string {
			return fmt.Sprintf("The website %s crashed the analysis browser and cannot be analyzed at the moment.", s)
		},
	},
	{
		kind:    Network,
		markers: []string{"timeout", "timed out", "deadline exceeded", "etimedout"},
		message: func(s string) string {
			return fmt.Sprintf("The analysis of %s took too long. The site may be slow or temporarily unreachable.", s)
		},
	},
	{
		kind:    Compatibility,
		markers: []string{"blocked", "captcha", "bot detection", "access denied", "cloudflare", "403"},
		message: func(s string) string {
			return fmt.Sprintf("The website %s blocks automated access, so it cannot be analyzed.", s)
		},
	},
	{
		kind:    Network,
		markers: []string{"enotfound", "no such host", "err_name_not_resolved", "getaddrinfo", "could not resolve", "dns"},
		message: func(s string) string {
			return fmt.Sprintf("The address of %s could not be resolved. Check that the URL is spelled correctly.", s)
		},
	},
	{
		kind:    Content,
		markers: []string{"422", "unprocessable", "invalid content", "empty content", "no content"},
		message: func(s string) string {
			return fmt.Sprintf("The content of %s could not be processed. The page may be empty or in an unsupported format.", s)
		},
	},
	{
		kind:    Quota,
		markers: []string{"quota", "limit exceeded", "limit reached", "usage limit", "too many requests", "429"},
		message: func(string) string {
			return "You have reached your analysis limit. Upgrade your plan or wait until your quota resets."
		},
	},
	{
		kind: Server,
		markers: []string{
			"500", "502", "503", "504",
			"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		},
		message: func(string) string {
			return "The analysis service is temporarily unavailable. Please try again in a few moments."
		},
	},
}

func unknownMessage(subject string) string {
	return fmt.Sprintf("An unexpected error occurred while analyzing %s. Please try again.", subject)
}

// Classify maps a raw failure to an AnalysisError. It accepts errors, strings,
// fmt.Stringers, anything else printable, and nil. It never returns nil.
//
// Textual markers decide first. When none match, a structured HTTP status
// carried by an *APIError is used before falling back to Unknown.
func Classify(raw any, subjectURL string) *AnalysisError {
	var already *AnalysisError
	if err, ok := raw.(error); ok && errors.As(err, &already) && already != nil {
		out := *already
		if out.URL == "" {
			out.URL = subjectURL
		}
		return &out
	}

	original := rawMessage(raw)
	subject := subjectURL
	if subject == "" {
		subject = "the website"
	}

	cause, _ := raw.(error)
	build := func(kind Kind, message string) *AnalysisError {
		return &AnalysisError{
			Kind:          kind,
			Message:       message,
			OriginalError: original,
			URL:           subjectURL,
			Retryable:     kind.Retryable(),
			cause:         cause,
		}
	}

	haystack := strings.ToLower(original)
	for _, r := range rules {
		for _, marker := range r.markers {
			if strings.Contains(haystack, marker) {
				return build(r.kind, r.message(subject))
			}
		}
	}

	if kind, ok := kindForStatus(cause); ok {
		for _, r := range rules {
			if r.kind == kind {
				return build(kind, r.message(subject))
			}
		}
	}

	return build(Unknown, unknownMessage(subject))
}

// kindForStatus inspects a structured status code, if the error carries one.
func kindForStatus(err error) (Kind, bool) {
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr == nil {
		return Unknown, false
	}
	switch code := apiErr.StatusCode; {
	case code == http.StatusUnprocessableEntity:
		return Content, true
	case code == http.StatusTooManyRequests, code == http.StatusPaymentRequired:
		return Quota, true
	case code >= 500 && code <= 599:
		return Server, true
	}
	return Unknown, false
}

func rawMessage(raw any) (msg string) {
	defer func() {
		// A nil pointer behind an error or Stringer interface panics on call.
		if recover() != nil {
			msg = ""
		}
	}()

	switch v := raw.(type) {
	case nil:
		return ""
	case error:
		return v.Error()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
