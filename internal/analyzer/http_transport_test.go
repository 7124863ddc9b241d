package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
)

// mockExecutor implements Executor for testing.
type mockExecutor struct {
	result   *model.AnalysisResult
	err      error
	fileName string
	fileBody string
	calls    int
}

func (m *mockExecutor) AnalyzeWebsite(_ context.Context, _ string) (*model.AnalysisResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockExecutor) AnalyzeFile(_ context.Context, name string, content io.Reader) (*model.AnalysisResult, error) {
	data, _ := io.ReadAll(content)
	m.fileName, m.fileBody = name, string(data)
	return m.result, m.err
}

func newTestMux(exec Executor) *http.ServeMux {
	logger := zap.NewNop()
	svc := NewService(exec, logger, nil)
	transport := NewTransport(svc, logger)
	mux := http.NewServeMux()
	transport.RegisterRoutes(mux)
	return mux
}

func postAnalyze(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHandleAnalyze_Success(t *testing.T) {
	exec := &mockExecutor{
		result: &model.AnalysisResult{
			ID:     "a1",
			URL:    "https://example.com",
			Status: "completed",
			Score:  91,
		},
	}
	rec := postAnalyze(newTestMux(exec), `{"url": "https://example.com"}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result model.AnalysisResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.ID != "a1" {
		t.Errorf("ID = %q, want %q", result.ID, "a1")
	}
}

func TestHandleAnalyze_EmptyURL(t *testing.T) {
	rec := postAnalyze(newTestMux(&mockExecutor{}), `{"url": ""}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAnalyze_BlankURL(t *testing.T) {
	rec := postAnalyze(newTestMux(&mockExecutor{}), `{"url": "   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAnalyze_PrivateURL(t *testing.T) {
	exec := &mockExecutor{}
	rec := postAnalyze(newTestMux(exec), `{"url": "http://192.168.1.1/admin"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0", exec.calls)
	}
}

func TestHandleAnalyze_MissingBody(t *testing.T) {
	rec := postAnalyze(newTestMux(&mockExecutor{}), "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAnalyze_MalformedJSON(t *testing.T) {
	rec := postAnalyze(newTestMux(&mockExecutor{}), `{invalid json`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAnalyze_ClassifiedErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantKind      string
		wantRetryable bool
	}{
		{"crash", errors.New("page crashed while rendering"), http.StatusUnprocessableEntity, "compatibility", false},
		{"blocked", errors.New("request blocked by Cloudflare"), http.StatusUnprocessableEntity, "compatibility", false},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "network", true},
		{"dns", errors.New("dial tcp: lookup nowhere.invalid: no such host"), http.StatusGatewayTimeout, "network", true},
		{"content", &errs.APIError{StatusCode: 422, Message: "empty page"}, http.StatusUnprocessableEntity, "content", false},
		{"quota", &errs.APIError{StatusCode: 402, Message: "plan exhausted"}, http.StatusTooManyRequests, "quota", false},
		{"server", errors.New("upstream returned 503"), http.StatusBadGateway, "server", true},
		{"unknown", errors.New("something odd"), http.StatusInternalServerError, "unknown", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAnalyze(newTestMux(&mockExecutor{err: tt.err}), `{"url": "https://example.com"}`)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec)
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
			if resp.Retryable == nil || *resp.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", resp.Retryable, tt.wantRetryable)
			}
			if resp.Title == "" || len(resp.Suggestions) == 0 {
				t.Errorf("response missing presentation: %+v", resp)
			}
			if tt.name == "unknown" && strings.Contains(resp.Message, tt.err.Error()) {
				t.Errorf("raw error leaked into message: %q", resp.Message)
			}
		})
	}
}

func TestHandleAnalyzeFile(t *testing.T) {
	exec := &mockExecutor{result: &model.AnalysisResult{ID: "f1", FileName: "report.pdf"}}
	mux := newTestMux(exec)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("%PDF-1.7"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	if exec.fileName != "report.pdf" || exec.fileBody != "%PDF-1.7" {
		t.Errorf("executor got %q with %q", exec.fileName, exec.fileBody)
	}
}

func TestHandleAnalyzeFile_MissingFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analyze/file", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	newTestMux(&mockExecutor{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	newTestMux(&mockExecutor{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleAnalyze_WrongMethod(t *testing.T) {
	mux := newTestMux(&mockExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/analyze", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	// ServeMux returns 405 for method mismatch.
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServiceAnalyze_FileWithoutOpener(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewService(exec, zap.NewNop(), nil)

	inputs := []Input{
		{URL: "https://example.com", File: &FileInput{Name: "a.pdf"}},
		{File: &FileInput{Name: "a.pdf"}},
	}
	for _, in := range inputs {
		if _, err := svc.Analyze(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Analyze(%+v) error = %v, want ErrInvalidInput", in, err)
		}
	}
	if exec.calls != 0 || exec.fileName != "" {
		t.Errorf("executor was called: calls=%d file=%q", exec.calls, exec.fileName)
	}
}
