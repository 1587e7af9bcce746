// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fusion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/checklist-fuser/internal/httputil"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// Analyzer proposes fusion candidates for a document pair. The webhook
// implementation calls the external matching service; tests supply a
// mock. One call analyzes one complete pair, with no partial results.
type Analyzer interface {
	Analyze(ctx context.Context, doc1Items, doc2Items []types.ChecklistItem) (AnalysisResult, error)
}

// AnalysisResult is the bulk outcome of one analysis call.
type AnalysisResult struct {
	Candidates []types.FusionCandidate `json:"candidates" yaml:"candidates"`
	Summary    AnalysisSummary         `json:"summary" yaml:"summary"`
}

// AnalysisSummary aggregates one analysis batch.
type AnalysisSummary struct {
	PairsAnalyzed int     `json:"pairs_analyzed" yaml:"pairs_analyzed"`
	FusionsFound  int     `json:"fusions_found" yaml:"fusions_found"`
	AvgConfidence float64 `json:"avg_confidence" yaml:"avg_confidence"`

	// Breakdown counts candidates per confidence level.
	Breakdown map[types.ConfidenceLevel]int `json:"breakdown" yaml:"breakdown"`
}

// Summarize computes the batch summary for a candidate list.
func Summarize(candidates []types.FusionCandidate, pairsAnalyzed int) AnalysisSummary {
	s := AnalysisSummary{
		PairsAnalyzed: pairsAnalyzed,
		FusionsFound:  len(candidates),
		Breakdown:     make(map[types.ConfidenceLevel]int),
	}
	total := 0
	for _, c := range candidates {
		total += c.ConfidenceScore
		s.Breakdown[c.Level()]++
	}
	if len(candidates) > 0 {
		s.AvgConfidence = float64(total) / float64(len(candidates))
	}
	return s
}

// WebhookAnalyzer calls the fusion analysis webhook. The endpoint
// returns either the current batch response shape or the legacy flat
// shape; both are adapted to FusionCandidate at this boundary.
type WebhookAnalyzer struct {
	Client *http.Client
	Config types.AnalysisConfig
}

// analysisRequest is the webhook request body.
type analysisRequest struct {
	Doc1AllItems []types.ChecklistItem `json:"doc1_all_items"`
	Doc2AllItems []types.ChecklistItem `json:"doc2_all_items"`
}

// batchResponse is the current webhook response shape.
type batchResponse struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error"`
	AutoFusions []wireFusion `json:"auto_fusions"`
	Summary     struct {
		TotalPairsAnalyzed int     `json:"total_pairs_analyzed"`
		AverageConfidence  float64 `json:"average_confidence"`
	} `json:"summary"`
}

// wireFusion is one proposal in the current response shape.
type wireFusion struct {
	FusionID       string `json:"fusion_id"`
	FusionDecision struct {
		CanFuse         bool   `json:"can_fuse"`
		ConfidenceScore int    `json:"confidence_score"`
		Explanation     string `json:"explanation"`
	} `json:"fusion_decision"`
	Result struct {
		MergedItem *types.MergedItem `json:"merged_item"`
	} `json:"result"`
	Doc1Items []types.ChecklistItem `json:"doc1_items"`
	Doc2Items []types.ChecklistItem `json:"doc2_items"`
}

// legacyResponse is the flat single-pair shape emitted by older
// analyzer workflows: {fusable, confidence, reason, fused_item}.
type legacyResponse struct {
	Fusable    *bool             `json:"fusable"`
	Confidence int               `json:"confidence"`
	Reason     string            `json:"reason"`
	FusedItem  *types.MergedItem `json:"fused_item"`
}

// Analyze posts both item lists to the webhook and adapts the response
// into fusion candidates. It blocks until the single bulk response
// arrives or the context is cancelled; rate-limited responses are
// retried with backoff.
func (a *WebhookAnalyzer) Analyze(ctx context.Context, doc1Items, doc2Items []types.ChecklistItem) (AnalysisResult, error) {
	if a.Config.WebhookURL == "" {
		return AnalysisResult{}, fmt.Errorf("analysis webhook URL not configured")
	}
	if len(doc1Items) == 0 || len(doc2Items) == 0 {
		return AnalysisResult{}, fmt.Errorf("both documents must have items to analyze")
	}

	body, err := json.Marshal(analysisRequest{Doc1AllItems: doc1Items, Doc2AllItems: doc2Items})
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("encoding analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.Config.UserAgent != "" {
		req.Header.Set("User-Agent", a.Config.UserAgent)
	}
	if a.Config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.Config.AuthToken)
	}

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, a.Config.MaxRetries)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return AnalysisResult{}, fmt.Errorf("analysis webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("reading analysis response: %w", err)
	}

	return decodeResponse(data, doc1Items, doc2Items)
}

// decodeResponse adapts either response shape into candidates. The
// legacy shape is detected by the presence of the top-level "fusable"
// field; everything else goes through the batch decoder.
func decodeResponse(data []byte, doc1Items, doc2Items []types.ChecklistItem) (AnalysisResult, error) {
	var legacy legacyResponse
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.Fusable != nil {
		return adaptLegacy(legacy, doc1Items, doc2Items)
	}

	var batch batchResponse
	if err := json.Unmarshal(data, &batch); err != nil {
		return AnalysisResult{}, fmt.Errorf("decoding analysis response: %w", err)
	}
	if !batch.Success && batch.Error != "" {
		return AnalysisResult{}, fmt.Errorf("analysis failed: %s", batch.Error)
	}

	candidates := make([]types.FusionCandidate, 0, len(batch.AutoFusions))
	for i, f := range batch.AutoFusions {
		fusionID := f.FusionID
		if fusionID == "" {
			fusionID = fmt.Sprintf("fusion-%d", i+1)
		}
		candidates = append(candidates, types.FusionCandidate{
			FusionID:        fusionID,
			Doc1ItemIDs:     itemIDs(f.Doc1Items),
			Doc2ItemIDs:     itemIDs(f.Doc2Items),
			CanFuse:         f.FusionDecision.CanFuse,
			ConfidenceScore: f.FusionDecision.ConfidenceScore,
			Explanation:     f.FusionDecision.Explanation,
			MergedItem:      f.Result.MergedItem,
		})
	}

	result := AnalysisResult{
		Candidates: candidates,
		Summary:    Summarize(candidates, batch.Summary.TotalPairsAnalyzed),
	}
	return result, nil
}

// adaptLegacy converts the flat single-pair shape. The legacy workflow
// analyzed exactly the items it was sent, so the candidate references
// all of them.
func adaptLegacy(legacy legacyResponse, doc1Items, doc2Items []types.ChecklistItem) (AnalysisResult, error) {
	if *legacy.Fusable && legacy.FusedItem == nil {
		return AnalysisResult{}, fmt.Errorf("legacy response inconsistent: fusable with no fused item")
	}

	c := types.FusionCandidate{
		FusionID:        "legacy-1",
		Doc1ItemIDs:     itemIDs(doc1Items),
		Doc2ItemIDs:     itemIDs(doc2Items),
		CanFuse:         *legacy.Fusable,
		ConfidenceScore: legacy.Confidence,
		Explanation:     legacy.Reason,
		MergedItem:      legacy.FusedItem,
	}
	return AnalysisResult{
		Candidates: []types.FusionCandidate{c},
		Summary:    Summarize([]types.FusionCandidate{c}, 1),
	}, nil
}

func itemIDs(items []types.ChecklistItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
