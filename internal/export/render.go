// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Format selects an export renderer.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat maps a user-supplied format flag to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "table", "text", "txt":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown export format %q (yaml, json, table)", s)
}

// Render writes the checklist to w in the given format.
func Render(w io.Writer, fc FinalChecklist, format Format) error {
	switch format {
	case FormatYAML:
		return renderYAML(w, fc)
	case FormatJSON:
		return renderJSON(w, fc)
	case FormatTable:
		return renderTable(w, fc)
	}
	return fmt.Errorf("unknown export format %q", format)
}

func renderYAML(w io.Writer, fc FinalChecklist) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encoding checklist: %w", err)
	}
	return enc.Close()
}

func renderJSON(w io.Writer, fc FinalChecklist) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encoding checklist: %w", err)
	}
	return nil
}

// renderTable prints a summary header followed by one aligned row per
// entry, the same layout the session listing commands use.
func renderTable(w io.Writer, fc FinalChecklist) error {
	fmt.Fprintf(w, "Unified checklist: %s + %s\n", fc.Doc1, fc.Doc2)
	fmt.Fprintf(w, "Generated: %s\n", fc.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Source items: %d  merged: %d (%d fused)  rejected originals: %d  kept separate: %d  unfused: %d\n\n",
		fc.Summary.TotalSourceItems, fc.Summary.Merged, fc.Summary.ItemsFused,
		fc.Summary.RejectedOriginals, fc.Summary.KeptSeparate, fc.Summary.Unfused)

	fmt.Fprintf(w, "%-18s  %-24s  %-12s  %s\n", "KIND", "PROVENANCE", "SECTION", "TEXT")
	for _, e := range fc.Entries {
		section, text := entryColumns(e)
		fmt.Fprintf(w, "%-18s  %-24s  %-12s  %s\n",
			e.Kind, truncate(e.Provenance, 24), truncate(section, 12), truncate(text, 80))
	}
	return nil
}

func entryColumns(e Entry) (section, text string) {
	switch {
	case e.Merged != nil:
		return e.Merged.Section, e.Merged.Text
	case e.Item != nil:
		return e.Item.Section, e.Item.Text
	}
	return "", ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
