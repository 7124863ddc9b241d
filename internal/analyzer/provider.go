package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/virail/studio/internal/model"
)

// Executor defines the contract for whatever actually runs an analysis.
type Executor interface {
	AnalyzeWebsite(ctx context.Context, targetURL string) (*model.AnalysisResult, error)
	AnalyzeFile(ctx context.Context, name string, content io.Reader) (*model.AnalysisResult, error)
}

// ErrInvalidInput is returned before any analysis starts when an Input names
// neither or both of a URL and a file, or its URL cannot be analyzed.
var ErrInvalidInput = errors.New("analyzer: invalid input")

// FileInput is an uploaded document. Open is called once per attempt so a
// retried run re-reads the content from the start.
type FileInput struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Input selects what to analyze.
type Input struct {
	URL  string
	File *FileInput
}

// WebsiteInput is shorthand for an Input analyzing targetURL.
func WebsiteInput(targetURL string) Input {
	return Input{URL: targetURL}
}

// Subject names the input for messages and logs.
func (in Input) Subject() string {
	if in.File != nil {
		return in.File.Name
	}
	return in.URL
}

// Type is "url" or "file".
func (in Input) Type() string {
	if in.File != nil {
		return "file"
	}
	return "url"
}

// normalize checks that in names exactly one of a URL or a file and
// normalizes the URL.
func (in Input) normalize() (Input, error) {
	hasURL := strings.TrimSpace(in.URL) != ""
	hasFile := in.File != nil
	if hasURL == hasFile {
		return in, fmt.Errorf("%w: name exactly one of a URL or a file", ErrInvalidInput)
	}
	if hasFile && in.File.Open == nil {
		return in, fmt.Errorf("%w: file %q cannot be opened", ErrInvalidInput, in.File.Name)
	}
	if hasFile {
		return in, nil
	}

	u, err := NormalizeURL(in.URL)
	if err != nil {
		return in, err
	}
	in.URL = u
	return in, nil
}

// execute dispatches a normalized input to the matching executor call.
func execute(ctx context.Context, exec Executor, in Input) (*model.AnalysisResult, error) {
	if in.File == nil {
		return exec.AnalyzeWebsite(ctx, in.URL)
	}

	rc, err := in.File.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return exec.AnalyzeFile(ctx, in.File.Name, rc)
}
