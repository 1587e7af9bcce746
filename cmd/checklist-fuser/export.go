// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/checklist-fuser/internal/export"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export the unified checklist",
	Long: `Export assembles the final checklist from a session's decisions:
accepted and edited fusions contribute their merged item, rejected pairs
keep both originals annotated with the rejection, and untouched items pass
through unfused. Every source item appears exactly once.

Output goes to <output-dir>/<session-id>.<format> unless --stdout is set.
Exporting with --complete marks the session completed.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "output format: yaml, json, or table")
	exportCmd.Flags().String("output-dir", "", "directory for export files (default \"output\")")
	exportCmd.Flags().Bool("stdout", false, "write to standard output instead of a file")
	exportCmd.Flags().Bool("complete", false, "mark the session completed after export")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	toStdout, _ := cmd.Flags().GetBool("stdout")
	complete, _ := cmd.Flags().GetBool("complete")

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

	fc, err := export.Assemble(engine.Snapshot(), doc1, doc2)
	if err != nil {
		return err
	}

	if toStdout {
		if err := export.Render(os.Stdout, fc, format); err != nil {
			return err
		}
	} else {
		outputDir, _ := cmd.Flags().GetString("output-dir")
		if outputDir == "" {
			outputDir = viper.GetString("export.output_dir")
		}
		if outputDir == "" {
			outputDir = "output"
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		ext := string(format)
		if format == export.FormatTable {
			ext = "txt"
		}
		path := filepath.Join(outputDir, sess.ID+"."+ext)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		if err := export.Render(f, fc, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "exported: %s\n", path)
	}

	fmt.Fprintf(os.Stdout, "%d source items: %d merged (%d fused), %d rejected originals, %d unfused\n",
		fc.Summary.TotalSourceItems, fc.Summary.Merged, fc.Summary.ItemsFused,
		fc.Summary.RejectedOriginals, fc.Summary.Unfused)

	if complete {
		sess.Status = types.SessionCompleted
		sess.CompletedAt = time.Now().UTC()
		sess.Stats = engine.Stats()
		if err := s.UpdateSession(ctx, sess); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "session completed: %s\n", sess.ID)
	}
	return nil
}
