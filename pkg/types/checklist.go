// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Document is a parsed certification checklist. It is created once per
// successfully parsed source file and never mutated afterwards.
type Document struct {
	// Filename is the source file name, kept for provenance only.
	Filename string `json:"filename" yaml:"filename"`

	// Sections holds the document sections in source order.
	Sections []Section `json:"sections" yaml:"sections"`
}

// Items returns every checklist item in the document, flattened in
// section and subsection source order.
func (d Document) Items() []ChecklistItem {
	var items []ChecklistItem
	for _, sec := range d.Sections {
		for _, sub := range sec.Subsections {
			items = append(items, sub.Items...)
		}
	}
	return items
}

// ItemCount returns the total number of checklist items in the document.
func (d Document) ItemCount() int {
	n := 0
	for _, sec := range d.Sections {
		for _, sub := range sec.Subsections {
			n += len(sub.Items)
		}
	}
	return n
}

// Section groups subsections under a single uppercase letter or short
// code (e.g. "A" for "A. Labelling"). A document with no recognizable
// headers gets a single implicit "Other" section.
type Section struct {
	// ID is the section code from the source header, or "Other".
	ID string `json:"id" yaml:"id"`

	// Title is the header text after the section code.
	Title string `json:"title" yaml:"title"`

	// Subsections holds the section's subsections in source order.
	// A section always has at least one subsection ("General" when the
	// source declares none).
	Subsections []Subsection `json:"subsections" yaml:"subsections"`
}

// Subsection groups checklist items under a descriptive heading.
type Subsection struct {
	// Name is the subsection heading, or "General".
	Name string `json:"name" yaml:"name"`

	// Items holds the subsection's checklist items in source order.
	Items []ChecklistItem `json:"items" yaml:"items"`
}

// ItemOption is one selectable answer attached to a checklist item.
// Checked is nil when the source checkbox state could not be determined.
type ItemOption struct {
	Label   string `json:"label" yaml:"label"`
	Checked *bool  `json:"checked" yaml:"checked"`
}

// ChecklistItem is a single audit question extracted from a source
// document. Immutable once created; the ID is unique within its
// document and stable across re-parses of the same text.
type ChecklistItem struct {
	// ID is slug(section).slug(subsection).slug(text prefix)_counter.
	ID string `json:"id" yaml:"id"`

	// Section is the owning section code (e.g. "A").
	Section string `json:"section" yaml:"section"`

	// Subsection is the owning subsection name.
	Subsection string `json:"subsection" yaml:"subsection"`

	// Text is the full question text, continuation lines absorbed.
	Text string `json:"text" yaml:"text"`

	// Status is the checkbox state from the source ("checked",
	// "unchecked", "partial"), empty when unknown.
	Status string `json:"status,omitempty" yaml:"status,omitempty"`

	// Options lists attached answer options, if any.
	Options []ItemOption `json:"options,omitempty" yaml:"options,omitempty"`

	// Notes carries free-form annotations from the source.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`

	// Page is the source page number, 0 when unknown.
	Page int `json:"page,omitempty" yaml:"page,omitempty"`
}
