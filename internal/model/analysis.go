package model

import "time"

// AnalysisResult holds a completed analysis report returned by the Studio backend.
type AnalysisResult struct {
	ID        string          `json:"id" yaml:"id"`
	URL       string          `json:"url,omitempty" yaml:"url,omitempty"`
	FileName  string          `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Status    string          `json:"status" yaml:"status"`
	Score     float64         `json:"score" yaml:"score"`
	Summary   string          `json:"summary,omitempty" yaml:"summary,omitempty"`
	Sections  []ReportSection `json:"sections,omitempty" yaml:"sections,omitempty"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// Subject returns the URL or file name the analysis was run against.
func (r *AnalysisResult) Subject() string {
	if r.URL != "" {
		return r.URL
	}
	return r.FileName
}

// ReportSection is one scored block of an analysis report.
type ReportSection struct {
	Title           string   `json:"title" yaml:"title"`
	Score           float64  `json:"score" yaml:"score"`
	Findings        []string `json:"findings,omitempty" yaml:"findings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// AnalysisSummary is the list-view shape of a stored analysis.
type AnalysisSummary struct {
	ID        string    `json:"id" yaml:"id"`
	URL       string    `json:"url,omitempty" yaml:"url,omitempty"`
	FileName  string    `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Status    string    `json:"status" yaml:"status"`
	Score     float64   `json:"score" yaml:"score"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// CompetitorAnalysisRequest asks the backend to compare a site against competitors.
type CompetitorAnalysisRequest struct {
	URL         string   `json:"url" validate:"required,url"`
	Competitors []string `json:"competitors" validate:"required,min=1,max=10,dive,url"`
}

// CompetitorAnalysis holds a competitive analysis report.
type CompetitorAnalysis struct {
	ID          string             `json:"id" yaml:"id"`
	URL         string             `json:"url" yaml:"url"`
	Status      string             `json:"status" yaml:"status"`
	Competitors []CompetitorResult `json:"competitors" yaml:"competitors"`
	CreatedAt   time.Time          `json:"created_at" yaml:"created_at"`
}

// CompetitorResult is one competitor's score within a competitive analysis.
type CompetitorResult struct {
	URL       string   `json:"url" yaml:"url"`
	Score     float64  `json:"score" yaml:"score"`
	Strengths []string `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Gaps      []string `json:"gaps,omitempty" yaml:"gaps,omitempty"`
}

// ErrorResponse is the JSON shape returned on failure, both by the Studio
// backend and by the local proxy.
type ErrorResponse struct {
	Error       string   `json:"error"`
	StatusCode  int      `json:"status_code"`
	Message     string   `json:"message"`
	Code        string   `json:"code,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Retryable   *bool    `json:"retryable,omitempty"`
	Title       string   `json:"title,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}
