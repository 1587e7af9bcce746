// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/checklist-fuser/internal/parse"
	"github.com/pdiddy/checklist-fuser/internal/reconcile"
	"github.com/pdiddy/checklist-fuser/internal/store"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create and review merge sessions",
	Long: `Session manages the review workflow for one document pair. Create a
session from two OCR text files, run analyze to collect merge suggestions,
then work through them with accept, reject, edit, manual, separate, and
undo. Status shows where the review stands.`,
}

// --- create ---

var sessionCreateCmd = &cobra.Command{
	Use:   "create <doc1> <doc2>",
	Short: "Create a merge session from two OCR text files",
	Long: `Create parses both files (or reuses their cached parses), stores them,
and opens a new session pairing them. The printed session ID is the handle
for every later subcommand.`,
	Args: cobra.ExactArgs(2),
	RunE: runSessionCreate,
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	hashes := make([]string, 2)
	names := make([]string, 2)
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		raw := string(data)
		hashes[i] = store.HashText(raw)
		names[i] = filepath.Base(path)

		cached, err := s.LoadCachedDocument(ctx, hashes[i])
		if err != nil {
			return err
		}
		if cached == nil {
			doc := parse.Parse(raw, names[i])
			if err := s.SaveDocument(ctx, hashes[i], doc); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "parsed:  %s (%d items)\n", names[i], doc.ItemCount())
		} else {
			fmt.Fprintf(os.Stdout, "cached:  %s (%d items)\n", names[i], cached.ItemCount())
		}
	}

	if name == "" {
		name = names[0] + " + " + names[1]
	}
	sess := types.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Doc1Hash:  hashes[0],
		Doc2Hash:  hashes[1],
		Status:    types.SessionCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "session created: %s\n", sess.ID)
	return nil
}

// --- list ---

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List merge sessions",
	RunE:  runSessionList,
}

func runSessionList(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	sessions, err := s.ListSessions(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-10s  %-8s  %s\n",
		"ID", "Name", "Status", "Pending", "Created")
	for _, sess := range sessions {
		name := sess.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-30s  %-10s  %-8d  %s\n",
			sess.ID, name, sess.Status, sess.Stats.Pending,
			sess.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// --- status ---

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session's suggestions and review progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStatus,
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
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

	stats := engine.Stats()
	fmt.Fprintf(os.Stdout, "Session: %s (%s)\n", sess.Name, sess.Status)
	fmt.Fprintf(os.Stdout, "Documents: %s (%d items), %s (%d items)\n",
		doc1.Filename, doc1.ItemCount(), doc2.Filename, doc2.ItemCount())
	fmt.Fprintf(os.Stdout, "Suggestions: %d total, %d pending, %d accepted, %d rejected, %d edited",
		stats.TotalSuggestions, stats.Pending, stats.Accepted, stats.Rejected, stats.Edited)
	if stats.AvgConfidence > 0 {
		fmt.Fprintf(os.Stdout, " (avg confidence %.1f)", stats.AvgConfidence)
	}
	fmt.Fprintln(os.Stdout)

	records := engine.Records()
	if len(records) == 0 {
		return nil
	}
	fmt.Fprintf(os.Stdout, "\n%-24s  %-13s  %-9s  %-10s  %s\n",
		"FUSION", "KIND", "STATUS", "CONFIDENCE", "TEXT")
	for _, rec := range records {
		text := ""
		if rec.MergedItem != nil {
			text = rec.MergedItem.Text
		} else if rec.Reason != "" {
			text = rec.Reason
		}
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		confidence := "-"
		if rec.Kind == types.KindAIFused || rec.Kind == types.KindEdited {
			confidence = fmt.Sprintf("%d %s", rec.ConfidenceScore, rec.ConfidenceLevel)
		}
		fmt.Fprintf(os.Stdout, "%-24s  %-13s  %-9s  %-10s  %s\n",
			truncateID(rec.FusionID), rec.Kind, rec.Status, confidence, text)
	}
	return nil
}

func truncateID(id string) string {
	if len(id) > 24 {
		return id[:21] + "..."
	}
	return id
}

// --- accept / reject / undo ---

var sessionAcceptCmd = &cobra.Command{
	Use:   "accept <session-id> <fusion-id>",
	Short: "Accept a merge suggestion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, args[0], func(engine *reconcile.Engine) error {
			err := engine.Accept(args[1])
			if errors.Is(err, reconcile.ErrAlreadyAccepted) {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "accepted: %s\n", args[1])
			return nil
		})
	},
}

var sessionRejectCmd = &cobra.Command{
	Use:   "reject <session-id> <fusion-id>",
	Short: "Reject a merge suggestion, keeping both originals",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return withEngine(cmd, args[0], func(engine *reconcile.Engine) error {
			if err := engine.Reject(args[1], reason); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "rejected: %s\n", args[1])
			return nil
		})
	},
}

var sessionUndoCmd = &cobra.Command{
	Use:   "undo <session-id> <fusion-id>",
	Short: "Undo an accept, reject, or edit",
	Long: `Undo returns an AI suggestion to pending. Manual fusions and
keep-separate decisions have no pending state, so undo removes them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, args[0], func(engine *reconcile.Engine) error {
			if err := engine.Undo(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "undone: %s\n", args[1])
			return nil
		})
	},
}

// --- edit ---

var sessionEditCmd = &cobra.Command{
	Use:   "edit <session-id> <fusion-id>",
	Short: "Replace a suggestion's merged item with your own wording",
	Long: `Edit rewrites the merged item of a pending or accepted suggestion.
The analyzer's draft is kept, so the edit can be undone. --section and
--text are required; other fields default to empty.`,
	Args: cobra.ExactArgs(2),
	RunE: runSessionEdit,
}

func runSessionEdit(cmd *cobra.Command, args []string) error {
	merged, err := mergedFromFlags(cmd)
	if err != nil {
		return err
	}
	return withEngine(cmd, args[0], func(engine *reconcile.Engine) error {
		if err := engine.Edit(args[1], merged); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "edited: %s\n", args[1])
		return nil
	})
}

// --- manual ---

var sessionManualCmd = &cobra.Command{
	Use:   "manual <session-id>",
	Short: "Record a manual fusion the analyzer did not suggest",
	Long: `Manual creates an immediately accepted fusion from item IDs you pick
yourself. --doc1-items and --doc2-items take comma-separated item IDs; the
merged item comes from --section, --text, and the other item flags.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionManual,
}

func runSessionManual(cmd *cobra.Command, args []string) error {
	doc1Items := splitIDs(cmd, "doc1-items")
	doc2Items := splitIDs(cmd, "doc2-items")
	merged, err := mergedFromFlags(cmd)
	if err != nil {
		return err
	}
	return withEngine(cmd, args[0], func(engine *reconcile.Engine) error {
		rec, err := engine.CreateManual(doc1Items, doc2Items, merged)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "manual fusion created: %s\n", rec.FusionID)
		return nil
	})
}

// --- separate ---

var sessionSeparateCmd = &cobra.Command{
	Use:   "separate <session-id>",
	Short: "Record a reviewed pair that should stay separate",
	Long: `Separate marks a pair of items as deliberately not merged. Both
originals stay in the final checklist, annotated with the decision.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionSeparate,
}

func runSessionSeparate(cmd *cobra.Command, args []string) error {
	doc1Items := splitIDs(cmd, "doc1-items")
	doc2Items := splitIDs(cmd, "doc2-items")
	reason, _ := cmd.Flags().GetString("reason")
	return withEngine(cmd, args[0], func(engine *reconcile.Engine) error {
		rec, err := engine.KeepSeparate(doc1Items, doc2Items, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "kept separate: %s\n", rec.FusionID)
		return nil
	})
}

// --- shared helpers ---

// withEngine loads a session's engine, runs op, and persists the
// resulting records and stats.
func withEngine(cmd *cobra.Command, sessionID string, op func(*reconcile.Engine) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	sess, engine, _, _, err := loadSession(ctx, s, sessionID)
	if err != nil {
		return err
	}
	if err := op(engine); err != nil {
		return err
	}
	return syncSession(ctx, s, sess, engine)
}

func mergedFromFlags(cmd *cobra.Command) (types.MergedItem, error) {
	section, _ := cmd.Flags().GetString("section")
	text, _ := cmd.Flags().GetString("text")
	if section == "" || strings.TrimSpace(text) == "" {
		return types.MergedItem{}, fmt.Errorf("--section and --text are required")
	}
	subsection, _ := cmd.Flags().GetString("subsection")
	status, _ := cmd.Flags().GetString("item-status")
	notes, _ := cmd.Flags().GetString("notes")
	return types.MergedItem{
		Section:    section,
		Subsection: subsection,
		Text:       text,
		Status:     status,
		Notes:      notes,
	}, nil
}

func splitIDs(cmd *cobra.Command, flag string) []string {
	raw, _ := cmd.Flags().GetString(flag)
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func addMergedItemFlags(cmd *cobra.Command) {
	cmd.Flags().String("section", "", "section of the merged item (required)")
	cmd.Flags().String("subsection", "", "subsection of the merged item")
	cmd.Flags().String("text", "", "text of the merged item (required)")
	cmd.Flags().String("item-status", "", "checkbox status: checked, unchecked, partial")
	cmd.Flags().String("notes", "", "notes on the merged item")
}

func init() {
	sessionCreateCmd.Flags().String("name", "", "session name (default: derived from filenames)")

	sessionRejectCmd.Flags().String("reason", "", "why the suggestion was rejected")

	addMergedItemFlags(sessionEditCmd)

	sessionManualCmd.Flags().String("doc1-items", "", "comma-separated item IDs from document 1")
	sessionManualCmd.Flags().String("doc2-items", "", "comma-separated item IDs from document 2")
	addMergedItemFlags(sessionManualCmd)

	sessionSeparateCmd.Flags().String("doc1-items", "", "comma-separated item IDs from document 1")
	sessionSeparateCmd.Flags().String("doc2-items", "", "comma-separated item IDs from document 2")
	sessionSeparateCmd.Flags().String("reason", "", "why the items stay separate")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionAcceptCmd)
	sessionCmd.AddCommand(sessionRejectCmd)
	sessionCmd.AddCommand(sessionEditCmd)
	sessionCmd.AddCommand(sessionManualCmd)
	sessionCmd.AddCommand(sessionSeparateCmd)
	sessionCmd.AddCommand(sessionUndoCmd)

	rootCmd.AddCommand(sessionCmd)
}
