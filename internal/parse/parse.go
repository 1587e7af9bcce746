// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse converts extraction-derived plain text into a typed
// checklist document. The input is loosely structured: section markers,
// checkbox glyphs, and free-form continuation lines, as produced by
// OCR and PDF text extraction of certification checklists.
package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// Default thresholds, calibrated on the certification checklists the
// parser was built against.
const (
	defaultMinItemLength         = 10
	defaultMaxSubsectionLength   = 150
	defaultMaxContinuationLength = 200
)

// slugTextPrefix is how much of the item text feeds the ID slug.
const slugTextPrefix = 50

var (
	// sectionPattern matches headers like "A. Labelling".
	sectionPattern = regexp.MustCompile(`^([A-Z])\.\s+(.+)$`)

	// itemPattern matches lines starting with a checkbox glyph:
	// [ ], [X], or partial-mark variants like [pa].
	itemPattern = regexp.MustCompile(`^\s*\[([\sXpa]*)\]\s*(.+)$`)

	// subsectionPattern matches short descriptive lines ending with a colon.
	subsectionPattern = regexp.MustCompile(`^(.+?):\s*$`)
)

// Parse converts raw text into a Document using default thresholds.
// It never fails: malformed input degrades to an empty or partially
// populated document.
func Parse(rawText, filename string) types.Document {
	return ParseWithConfig(rawText, filename, types.ParserConfig{})
}

// ParseWithConfig is Parse with explicit thresholds. Zero values in cfg
// select the defaults.
func ParseWithConfig(rawText, filename string, cfg types.ParserConfig) types.Document {
	minItem := cfg.MinItemLength
	if minItem <= 0 {
		minItem = defaultMinItemLength
	}
	maxSubsection := cfg.MaxSubsectionLength
	if maxSubsection <= 0 {
		maxSubsection = defaultMaxSubsectionLength
	}
	maxContinuation := cfg.MaxContinuationLength
	if maxContinuation <= 0 {
		maxContinuation = defaultMaxContinuationLength
	}

	lines := strings.Split(normalize(rawText), "\n")

	b := docBuilder{doc: types.Document{Filename: filename}}
	currentSection := ""
	currentTitle := ""
	currentSubsection := ""
	itemCounter := 0

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			currentSection = m[1]
			currentTitle = strings.TrimSpace(m[2])
			// The header title doubles as the first subsection.
			currentSubsection = currentTitle
			continue
		}

		if m := subsectionPattern.FindStringSubmatch(line); m != nil && len(line) < maxSubsection {
			currentSubsection = strings.TrimSpace(m[1])
			continue
		}

		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		text := strings.TrimSpace(m[2])
		if len(text) < minItem || isBoilerplate(text) {
			continue
		}

		// Absorb continuation lines until the next section or item
		// marker, a blank line, or an over-long line.
		for i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next == "" || len(next) >= maxContinuation {
				break
			}
			if itemPattern.MatchString(next) || sectionPattern.MatchString(next) {
				break
			}
			text += " " + next
			i++
		}

		itemCounter++
		item := types.ChecklistItem{
			ID:         itemID(currentSection, currentSubsection, text, itemCounter),
			Section:    sectionOrDefault(currentSection),
			Subsection: subsectionOrDefault(currentSubsection),
			Text:       text,
			Status:     checkboxStatus(m[1]),
		}
		b.append(currentSection, currentTitle, currentSubsection, item)
	}

	return b.doc
}

// normalize strips one layer of enclosing quotes and expands literal
// escaped newline sequences into real line breaks. Extraction services
// sometimes deliver the text as a JSON-escaped string.
func normalize(raw string) string {
	text := raw
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}
	return strings.ReplaceAll(text, `\n`, "\n")
}

// isBoilerplate flags item candidates that are footer or certifier
// noise rather than audit questions: page-number footers, certifier
// name references, and the mandatory-explanation disclaimer.
func isBoilerplate(text string) bool {
	if strings.Contains(text, "Page ") {
		return true
	}
	if strings.Contains(strings.ToLower(text), "procert") {
		return true
	}
	return strings.Contains(text, "Des explications sont obligatoires")
}

// checkboxStatus maps the glyph interior to an item status: empty
// brackets are unchecked, an X is checked, anything else is a partial mark.
func checkboxStatus(glyph string) string {
	inner := strings.TrimSpace(glyph)
	switch {
	case inner == "":
		return "unchecked"
	case strings.ContainsAny(inner, "Xx"):
		return "checked"
	}
	return "partial"
}

// itemID builds the deterministic item identifier. The document-wide
// counter keeps IDs unique even when two items slugify identically.
func itemID(section, subsection, text string, counter int) string {
	prefix := text
	if len(prefix) > slugTextPrefix {
		prefix = prefix[:slugTextPrefix]
	}
	return fmt.Sprintf("%s.%s.%s_%d",
		Slugify(sectionOrDefault(section)),
		Slugify(subsectionOrDefault(subsection)),
		Slugify(prefix),
		counter,
	)
}

func sectionOrDefault(section string) string {
	if section == "" {
		return "Other"
	}
	return section
}

func subsectionOrDefault(subsection string) string {
	if subsection == "" {
		return "General"
	}
	return subsection
}

// docBuilder appends items to the document, creating section and
// subsection containers on first use and preserving source order.
type docBuilder struct {
	doc types.Document
}

func (b *docBuilder) append(section, title, subsection string, item types.ChecklistItem) {
	secID := sectionOrDefault(section)
	subName := subsectionOrDefault(subsection)

	si := -1
	for i := range b.doc.Sections {
		if b.doc.Sections[i].ID == secID {
			si = i
			break
		}
	}
	if si < 0 {
		b.doc.Sections = append(b.doc.Sections, types.Section{ID: secID, Title: title})
		si = len(b.doc.Sections) - 1
	}

	sec := &b.doc.Sections[si]
	for j := range sec.Subsections {
		if sec.Subsections[j].Name == subName {
			sec.Subsections[j].Items = append(sec.Subsections[j].Items, item)
			return
		}
	}
	sec.Subsections = append(sec.Subsections, types.Subsection{
		Name:  subName,
		Items: []types.ChecklistItem{item},
	})
}
