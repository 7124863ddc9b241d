package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/virail/studio/internal/model"
)

// setupEnv points the CLI at backend and isolates config and session files.
func setupEnv(t *testing.T, backend http.Handler) string {
	t.Helper()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("STUDIO_API_URL", ts.URL)
	t.Setenv("STUDIO_RATE_LIMIT", "1000")
	t.Setenv("STUDIO_LOG_LEVEL", "FATAL")

	sessionFile := filepath.Join(dir, "session.json")
	t.Setenv("STUDIO_SESSION_FILE", sessionFile)
	return sessionFile
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAnalyze_Success(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.AnalysisResult{
			ID: "a1", URL: "https://example.com", Status: "completed", Score: 87,
			Sections: []model.ReportSection{{Title: "SEO", Score: 80, Findings: []string{"Missing meta description"}}},
		})
	}))

	stdout, _, err := run(t, "", "analyze", "https://example.com")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Analysis a1 (completed)")
	assert.Contains(t, stdout, "87/100")
	assert.Contains(t, stdout, "Missing meta description")
}

func TestAnalyze_JSONOutput(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.AnalysisResult{ID: "a1", URL: "https://example.com", Status: "completed"})
	}))

	stdout, _, err := run(t, "", "analyze", "https://example.com", "-o", "json")
	require.NoError(t, err)

	var got model.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "a1", got.ID)
}

func TestAnalyze_ServerFailureIsPresented(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, model.ErrorResponse{Error: "Service Unavailable", Message: "renderer pool exhausted"})
	}))

	stdout, stderr, err := run(t, "", "analyze", "https://example.com")

	require.ErrorIs(t, err, ErrReported)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Service temporarily unavailable")
	assert.Contains(t, stderr, "What you can do:")
	assert.Contains(t, stderr, "Try again")
	assert.Contains(t, stderr, "Open example.com")
	assert.NotContains(t, stderr, "renderer pool exhausted")
}

func TestAnalyze_NonRetryableFailureOffersNoRetry(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{Message: "monthly quota exceeded"})
	}))

	_, stderr, err := run(t, "", "analyze", "https://example.com")

	require.ErrorIs(t, err, ErrReported)
	assert.Contains(t, stderr, "Analysis limit reached")
	assert.NotContains(t, stderr, "Try again")
}

func TestAnalyze_JSONFailure(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Message: "no readable content"})
	}))

	stdout, _, err := run(t, "", "analyze", "https://example.com", "-o", "json")
	require.ErrorIs(t, err, ErrReported)

	var got struct {
		Kind      string `json:"kind"`
		Retryable bool   `json:"retryable"`
		URL       string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "content", got.Kind)
	assert.False(t, got.Retryable)
	assert.Equal(t, "https://example.com", got.URL)
}

func TestAnalyze_RetriesTransientFailure(t *testing.T) {
	var hits atomic.Int32
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, model.ErrorResponse{Message: "bad gateway"})
			return
		}
		writeJSON(w, http.StatusOK, model.AnalysisResult{ID: "a2", Status: "completed"})
	}))

	stdout, _, err := run(t, "", "analyze", "https://example.com", "--retries", "1", "--backoff", "0s")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Analysis a2")
	assert.EqualValues(t, 2, hits.Load())
}

func TestAnalyze_Batch(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if strings.Contains(body["url"], "empty") {
			writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{Message: "unprocessable"})
			return
		}
		writeJSON(w, http.StatusOK, model.AnalysisResult{ID: "id-" + body["url"][8:], URL: body["url"], Status: "completed", Score: 70})
	}))

	stdout, _, err := run(t, "", "analyze", "https://a.com", "https://empty.com", "https://b.com", "--concurrency", "2")

	require.ErrorIs(t, err, ErrReported)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "SUBJECT")
	assert.Contains(t, lines[1], "id-a.com")
	assert.Contains(t, lines[2], "Content could not be processed")
	assert.Contains(t, lines[3], "id-b.com")
}

func TestAnalyze_File(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		writeJSON(w, http.StatusOK, model.AnalysisResult{ID: "f1", FileName: hdr.Filename, Summary: string(data)})
	}))
	require.NoError(t, os.WriteFile("notes.txt", []byte("hello studio"), 0o600))

	stdout, _, err := run(t, "", "analyze", "--file", "notes.txt")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Subject: notes.txt")
	assert.Contains(t, stdout, "hello studio")
}

func TestAnalyze_NothingToAnalyze(t *testing.T) {
	setupEnv(t, http.NotFoundHandler())

	_, _, err := run(t, "", "analyze")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReported)
}

func TestLoginWhoamiLogout(t *testing.T) {
	var loggedOut atomic.Bool
	sessionFile := setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var creds model.Credentials
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds.Password != "correct horse battery" {
				writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Message: "invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, model.AuthResponse{Token: "tok", User: model.User{ID: "u1", Email: creds.Email}})
		case "/auth/logout":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			loggedOut.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))

	_, stderr, err := run(t, "correct horse battery\n", "login", "--email", "ada@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Welcome, ada@example.com.")
	assert.FileExists(t, sessionFile)

	stdout, _, err := run(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com (u1)\n", stdout)

	stdout, _, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed out.")
	assert.True(t, loggedOut.Load())
	assert.NoFileExists(t, sessionFile)

	_, _, err = run(t, "", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestLogin_InvalidEmailIsRejectedLocally(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("backend must not be called")
		w.WriteHeader(http.StatusTeapot)
	}))

	_, _, err := run(t, "long enough password\n", "login", "--email", "nope", "--password-stdin")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReported)
}

func TestUsage(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.UsageLimits{
			Analyses:           model.Usage{Used: 10, Limit: 10},
			CompetitorAnalyses: model.Usage{Used: 1, Limit: -1},
		})
	}))

	stdout, _, err := run(t, "", "usage")

	require.NoError(t, err)
	assert.Contains(t, stdout, "10 of 10 used")
	assert.Contains(t, stdout, "none (limit reached)")
	assert.Contains(t, stdout, "1 used (unlimited)")
}

func TestPlans_YAML(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"plans":[{"id":"pro","name":"Pro","price_cents":2900,"currency":"usd","interval":"month","analyses_limit":100}]}`)
	}))

	stdout, _, err := run(t, "", "plans", "-o", "yaml")
	require.NoError(t, err)

	var plans []model.Plan
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "pro", plans[0].ID)
	assert.EqualValues(t, 2900, plans[0].PriceCents)
}

func TestPlans_Text(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"plans":[{"id":"free","name":"Free","analyses_limit":3},{"id":"pro","name":"Pro","price_cents":2900,"currency":"usd","interval":"month","analyses_limit":-1}]}`)
	}))

	stdout, _, err := run(t, "", "plans")

	require.NoError(t, err)
	assert.Contains(t, stdout, "free")
	assert.Contains(t, stdout, "29.00 USD/month")
	assert.Contains(t, stdout, "unlimited")
}

func TestCompetitorsAnalyze(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/competitors/analyze", r.URL.Path)
		writeJSON(w, http.StatusOK, model.CompetitorAnalysis{
			ID: "c1", URL: "https://mine.com", Status: "completed",
			Competitors: []model.CompetitorResult{{URL: "https://a.com", Score: 71, Strengths: []string{"fast"}}},
		})
	}))

	stdout, _, err := run(t, "", "competitors", "analyze", "https://mine.com", "-c", "https://a.com")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Competitive analysis c1")
	assert.Contains(t, stdout, "https://a.com")
	assert.Contains(t, stdout, "71/100")
}

func TestUnknownOutputFormat(t *testing.T) {
	setupEnv(t, http.NotFoundHandler())

	_, _, err := run(t, "", "plans", "-o", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	setupEnv(t, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := NewRootCmd()
	root.SetArgs([]string{"serve", "--port", "0"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	require.NoError(t, root.ExecuteContext(ctx))
}

func TestExecute_ExitCodes(t *testing.T) {
	setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/payments/plans" {
			_, _ = fmt.Fprint(w, `{"plans":[]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	var stderr bytes.Buffer
	assert.Equal(t, 0, Execute(context.Background(), []string{"plans"}, io.Discard, &stderr))
	assert.Equal(t, 1, Execute(context.Background(), []string{"usage"}, io.Discard, &stderr))
	assert.Contains(t, stderr.String(), "Service temporarily unavailable")
	assert.Equal(t, 1, Execute(context.Background(), []string{"whoami"}, io.Discard, &stderr))
	assert.Contains(t, stderr.String(), "Error: not signed in")
}

func TestIsTerminal_AcceptsReadersAndWriters(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })

	assert.False(t, isTerminal(strings.NewReader("y\n")))
	assert.False(t, isTerminal(&bytes.Buffer{}))
	assert.False(t, isTerminal(r))
	assert.False(t, isTerminal(w))
	assert.False(t, isTerminal(nil))
}

func TestConfirm_SharedReaderKeepsLaterAnswers(t *testing.T) {
	answers := bufio.NewReader(strings.NewReader("y\nno\nyes\n"))
	var prompts bytes.Buffer

	assert.True(t, confirm(answers, &prompts, "Try again?"))
	assert.False(t, confirm(answers, &prompts, "Try again?"))
	assert.True(t, confirm(answers, &prompts, "Try again?"))
	assert.False(t, confirm(answers, &prompts, "Try again?"))
	assert.Equal(t, 4, strings.Count(prompts.String(), "Try again? [y/N] "))
}
