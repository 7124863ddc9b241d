package studio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/virail/studio/internal/model"
)

const analysesPath = "/api/v1/analyses"

// AnalyzeWebsite asks the backend to analyze the page at targetURL.
func (c *Client) AnalyzeWebsite(ctx context.Context, targetURL string) (*model.AnalysisResult, error) {
	req, err := jsonRequest(http.MethodPost, analysesPath, map[string]string{"url": targetURL})
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeFile uploads a document for analysis as multipart form data.
func (c *Client) AnalyzeFile(ctx context.Context, name string, content io.Reader) (*model.AnalysisResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", path.Base(name))
	if err != nil {
		return nil, fmt.Errorf("studio: build upload: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(content, maxUploadSize+1)); err != nil {
		return nil, fmt.Errorf("studio: read upload %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("studio: build upload: %w", err)
	}
	if buf.Len() > maxUploadSize+4096 {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", errUploadTooLarge, name, maxUploadSize)
	}

	req := request{
		method:      http.MethodPost,
		path:        analysesPath,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}

	var result model.AnalysisResult
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAnalysis fetches a stored analysis by ID.
func (c *Client) GetAnalysis(ctx context.Context, id string) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	req := request{method: http.MethodGet, path: analysesPath + "/" + url.PathEscape(id)}
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAnalyses returns the caller's analyses, newest first. A limit of zero
// leaves the page size to the backend.
func (c *Client) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisSummary, error) {
	req := request{method: http.MethodGet, path: analysesPath}
	if limit > 0 {
		req.query = url.Values{"limit": {strconv.Itoa(limit)}}
	}

	var out struct {
		Analyses []model.AnalysisSummary `json:"analyses"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Analyses, nil
}
