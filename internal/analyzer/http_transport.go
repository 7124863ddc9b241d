package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
	"github.com/virail/studio/internal/present"
)

const (
	analyzeTimeout = 60 * time.Second
	maxUploadBody  = 25 << 20
)

var (
	errURLRequired  = errors.New("the \"url\" field is required")
	errFileRequired = errors.New("the \"file\" form field is required")
)

// Transport exposes the analysis service over HTTP.
type Transport struct {
	service *Service
	logger  *zap.Logger
}

// NewTransport creates an HTTP transport backed by the given service.
func NewTransport(service *Service, logger *zap.Logger) *Transport {
	return &Transport{service: service, logger: logger}
}

// RegisterRoutes attaches the transport's handlers to the given mux.
func (t *Transport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /analyze", t.handleAnalyze)
	mux.HandleFunc("POST /analyze/file", t.handleAnalyzeFile)
	mux.HandleFunc("GET /healthz", t.handleHealth)
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func (r analyzeRequest) validate() error {
	if r.URL == "" {
		return errURLRequired
	}
	return nil
}

func (t *Transport) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	const maxRequestBody = 1 << 20 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.renderError(w, http.StatusBadRequest, "Invalid request body. Please send a JSON object with a \"url\" field.")
		return
	}

	if err := req.validate(); err != nil {
		t.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	t.analyze(w, r, WebsiteInput(req.URL))
}

func (t *Transport) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	file, header, err := r.FormFile("file")
	if err != nil {
		msg := errFileRequired.Error()
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			msg = "The uploaded file is too large."
		}
		t.renderError(w, http.StatusBadRequest, msg)
		return
	}
	defer func() { _ = file.Close() }()

	t.analyze(w, r, Input{File: &FileInput{
		Name: header.Filename,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(file), nil },
	}})
}

func (t *Transport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	t.renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *Transport) analyze(w http.ResponseWriter, r *http.Request, in Input) {
	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()

	result, err := t.service.Analyze(ctx, in)
	if err != nil {
		t.handleServiceError(w, err)
		return
	}

	t.renderJSON(w, http.StatusOK, result)
}

// statusForKind maps a classified failure to the proxy's response status.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.Compatibility, errs.Content:
		return http.StatusUnprocessableEntity
	case errs.Quota:
		return http.StatusTooManyRequests
	case errs.Network:
		return http.StatusGatewayTimeout
	case errs.Server:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (t *Transport) handleServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidInput) {
		t.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	var aerr *errs.AnalysisError
	if !errors.As(err, &aerr) {
		t.renderError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	p := present.Present(aerr)
	status := statusForKind(aerr.Kind)
	retryable := aerr.Retryable
	t.renderJSON(w, status, model.ErrorResponse{
		Error:       http.StatusText(status),
		StatusCode:  status,
		Message:     aerr.Message,
		Kind:        aerr.Kind.String(),
		Retryable:   &retryable,
		Title:       p.Title,
		Suggestions: p.Suggestions,
	})
}

func (t *Transport) renderJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		t.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, `{"error":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (t *Transport) renderError(w http.ResponseWriter, status int, message string) {
	t.renderJSON(w, status, model.ErrorResponse{
		Error:      http.StatusText(status),
		StatusCode: status,
		Message:    message,
	})
}
