// Package present turns classified analysis errors into what the user sees:
// a title, an explanation, ordered suggestions, and the actions on offer.
package present

import (
	"context"
	"net/url"

	"golang.org/x/net/publicsuffix"

	"github.com/virail/studio/internal/notify"
	"github.com/virail/studio/internal/platform/errs"
)

// Severity ranks how alarming a presentation is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Destructive reports whether the severity calls for destructive styling.
func (s Severity) Destructive() bool {
	return s == SeverityError
}

// Variant maps the severity to a notification variant.
func (s Severity) Variant() notify.Variant {
	if s.Destructive() {
		return notify.Destructive
	}
	return notify.Default
}

// Action is something the user can do from an error display.
type Action struct {
	Label string
	run   func(ctx context.Context) error
}

// Run performs the action.
func (a *Action) Run(ctx context.Context) error {
	return a.run(ctx)
}

// Presentation is the user-facing form of an AnalysisError. Retry is nil when
// the error is not retryable or no retry handler was supplied; OpenURL is nil
// when the error has no subject URL.
type Presentation struct {
	Kind        errs.Kind
	Title       string
	Description string
	Message     string
	Suggestions []string
	Severity    Severity
	URL         string

	Retry   *Action
	OpenURL *Action
}

type entry struct {
	title       string
	description string
	suggestions []string
	severity    Severity
}

var table = map[errs.Kind]entry{
	errs.Compatibility: {
		title:       "Website not compatible",
		description: "This website can't be analyzed with our current tools.",
		suggestions: []string{
			"Try analyzing a different page of the same site",
			"Upload the page content as a file instead",
			"Contact support if you believe this site should be supported",
		},
		severity: SeverityWarning,
	},
	errs.Network: {
		title:       "Connection problem",
		description: "We couldn't reach the website in time.",
		suggestions: []string{
			"Check that the URL is correct and publicly reachable",
			"Check your internet connection",
			"Try again in a few minutes",
		},
		severity: SeverityWarning,
	},
	errs.Content: {
		title:       "Content could not be processed",
		description: "The page or file doesn't contain content we can analyze.",
		suggestions: []string{
			"Make sure the page has visible text content",
			"Check that the page doesn't require a login",
			"Try a different page or file format",
		},
		severity: SeverityInfo,
	},
	errs.Server: {
		title:       "Service temporarily unavailable",
		description: "The analysis service ran into a problem on our side.",
		suggestions: []string{
			"Try again in a few moments",
			"Check the Virail Studio status page if the problem persists",
		},
		severity: SeverityError,
	},
	errs.Quota: {
		title:       "Analysis limit reached",
		description: "You've used all the analyses included in your plan for this period.",
		suggestions: []string{
			"Upgrade your plan for more analyses",
			"Wait until your usage resets",
			"Review your usage with `studio usage`",
		},
		severity: SeverityWarning,
	},
	errs.Unknown: {
		title:       "Something went wrong",
		description: "An unexpected error occurred during the analysis.",
		suggestions: []string{
			"Try again",
			"Contact support if the problem persists",
		},
		severity: SeverityError,
	},
}

type options struct {
	retry  func(ctx context.Context) error
	opener func(ctx context.Context, rawURL string) error
}

// Option configures Present.
type Option func(*options)

// WithRetry offers a retry action backed by fn, if the error is retryable.
func WithRetry(fn func(ctx context.Context) error) Option {
	return func(o *options) { o.retry = fn }
}

// WithOpener replaces how the subject URL is opened.
func WithOpener(fn func(ctx context.Context, rawURL string) error) Option {
	return func(o *options) { o.opener = fn }
}

// Present builds the presentation for err. A nil err presents as Unknown.
func Present(err *errs.AnalysisError, opts ...Option) Presentation {
	o := options{opener: OpenBrowser}
	for _, opt := range opts {
		opt(&o)
	}

	if err == nil {
		err = errs.Classify(nil, "")
	}
	e, ok := table[err.Kind]
	if !ok {
		e = table[errs.Unknown]
	}

	p := Presentation{
		Kind:        err.Kind,
		Title:       e.title,
		Description: e.description,
		Message:     err.Message,
		Suggestions: append([]string(nil), e.suggestions...),
		Severity:    e.severity,
		URL:         err.URL,
	}

	if o.retry != nil && err.Retryable {
		p.Retry = &Action{Label: "Try again", run: o.retry}
	}
	if err.URL != "" && o.opener != nil {
		target, opener := err.URL, o.opener
		p.OpenURL = &Action{
			Label: "Open " + displayHost(target),
			run:   func(ctx context.Context) error { return opener(ctx, target) },
		}
	}
	return p
}

// Toast condenses a presentation into a notification.
func (p Presentation) Toast() notify.Toast {
	return notify.Toast{
		Title:       p.Title,
		Description: p.Message,
		Variant:     p.Severity.Variant(),
	}
}

// displayHost shortens a URL to its registrable domain, e.g.
// https://blog.example.co.uk/post → example.co.uk.
func displayHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	if domain, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname()); err == nil {
		return domain
	}
	return u.Hostname()
}
