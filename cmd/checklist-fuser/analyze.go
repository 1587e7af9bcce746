// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/checklist-fuser/internal/fusion"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

const (
	defaultAnalysisTimeout = 120 * time.Second
	defaultUserAgent       = "checklist-fuser/0.1"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <session-id>",
	Short: "Request merge suggestions from the fusion analyzer",
	Long: `Analyze sends both documents' items to the fusion analysis webhook and
ingests the returned suggestions as pending records. The call blocks until
the single bulk response arrives; the session stays in its last consistent
state if it fails. Running analyze again adds new suggestions without
resetting decisions already made.

The webhook token is read from .secrets/fusion-webhook-token when present.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("webhook-url", "", "fusion analyzer endpoint (or analysis.webhook_url in config)")
	analyzeCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 120s)")
	analyzeCmd.Flags().Int("max-retries", 0, "retries on rate-limited responses (default 3)")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	webhookURL, _ := cmd.Flags().GetString("webhook-url")
	if webhookURL == "" {
		webhookURL = viper.GetString("analysis.webhook_url")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultAnalysisTimeout
	}
	maxRetries, _ := cmd.Flags().GetInt("max-retries")

	cfg := types.AnalysisConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		WebhookURL: webhookURL,
		AuthToken:  secretDefault("fusion-webhook-token", viper.GetString("analysis.auth_token")),
		MaxRetries: maxRetries,
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	sess, engine, doc1, doc2, err := loadSession(ctx, s, args[0])
	if err != nil {
		return err
	}

	sess.Status = types.SessionAnalyzing
	sess.AnalysisStartedAt = time.Now().UTC()
	if err := s.UpdateSession(ctx, sess); err != nil {
		return err
	}

	analyzer := &fusion.WebhookAnalyzer{
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
	}
	result, err := analyzer.Analyze(ctx, doc1.Items(), doc2.Items())
	if err != nil {
		// Leave the session analyzing-stamped but revert the status so
		// a retry or manual review can proceed.
		sess.Status = types.SessionCreated
		if uerr := s.UpdateSession(ctx, sess); uerr != nil {
			fmt.Fprintf(os.Stderr, "warning: session status update failed: %v\n", uerr)
		}
		return err
	}

	valid, verrs := fusion.ValidateBatch(result.Candidates, doc1, doc2)
	for _, verr := range verrs {
		fmt.Fprintf(os.Stdout, "invalid candidate: %v\n", verr)
	}
	created := engine.Ingest(valid)

	sess.Status = types.SessionReady
	sess.AnalysisEndedAt = time.Now().UTC()
	if err := syncSession(ctx, s, sess, engine); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nAnalysis: %d suggestion(s), %d ingested, %d invalid (avg confidence %.1f)\n",
		len(result.Candidates), created, len(verrs), result.Summary.AvgConfidence)
	for _, level := range []types.ConfidenceLevel{
		types.ConfidenceVeryHigh, types.ConfidenceHigh, types.ConfidenceMedium,
		types.ConfidenceLow, types.ConfidenceVeryLow,
	} {
		if n := result.Summary.Breakdown[level]; n > 0 {
			fmt.Fprintf(os.Stdout, "  %s: %d\n", level, n)
		}
	}
	return nil
}
