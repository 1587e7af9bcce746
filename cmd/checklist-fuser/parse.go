// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/checklist-fuser/internal/parse"
	"github.com/pdiddy/checklist-fuser/internal/store"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Parse OCR text files into structured checklists",
	Long: `Parse reads raw OCR text files and converts each into a structured
checklist document (sections, subsections, checkbox items). Parsed documents
are cached by content hash, so re-parsing unchanged text is free.

Parsing never fails on malformed text; unrecognizable lines are dropped and
the worst case is an under-populated document.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Bool("force", false, "re-parse even when the text is already cached")
	parseCmd.Flags().Int("min-item-length", 0, "discard items shorter than this (default 10)")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more OCR text files")
	}

	force, _ := cmd.Flags().GetBool("force")
	minLen, _ := cmd.Flags().GetInt("min-item-length")
	cfg := types.ParserConfig{MinItemLength: minLen}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %s (%v)\n", path, err)
			failed++
			continue
		}

		raw := string(data)
		hash := store.HashText(raw)
		filename := filepath.Base(path)

		if !force {
			cached, err := s.LoadCachedDocument(ctx, hash)
			if err != nil {
				return err
			}
			if cached != nil {
				fmt.Fprintf(os.Stdout, "cached:  %s (%d items)  %s\n", filename, cached.ItemCount(), hash)
				continue
			}
		}

		doc := parse.ParseWithConfig(raw, filename, cfg)
		if err := s.SaveDocument(ctx, hash, doc); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "parsed:  %s (%d sections, %d items)  %s\n",
			filename, len(doc.Sections), doc.ItemCount(), hash)
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed parsing", failed)
	}
	return nil
}
