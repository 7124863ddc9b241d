package studio

import (
	"context"
	"net/http"
	"net/url"

	"github.com/virail/studio/internal/model"
)

const competitorsPath = "/api/v1/competitors"

// AnalyzeCompetitors starts a competitive analysis of a site against its competitors.
func (c *Client) AnalyzeCompetitors(ctx context.Context, in model.CompetitorAnalysisRequest) (*model.CompetitorAnalysis, error) {
	if err := validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	req, err := jsonRequest(http.MethodPost, competitorsPath+"/analyze", in)
	if err != nil {
		return nil, err
	}

	var out model.CompetitorAnalysis
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCompetitorAnalysis fetches a stored competitive analysis by ID.
func (c *Client) GetCompetitorAnalysis(ctx context.Context, id string) (*model.CompetitorAnalysis, error) {
	var out model.CompetitorAnalysis
	req := request{method: http.MethodGet, path: competitorsPath + "/analyses/" + url.PathEscape(id)}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
