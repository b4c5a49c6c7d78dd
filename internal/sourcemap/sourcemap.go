package sourcemap

import (
	"encoding/json"
	"sort"
)

// Segment is one source-map mapping entry: an output position paired with
// the source file and position it came from. Per spec.md §3, Segment is
// part of a Module's ordered `segments` sequence; GeneratedLine/Column
// here are module-local until the writer translates them to bundle-global
// offsets (spec.md §4.6).
type Segment struct {
	GeneratedLine   int
	GeneratedColumn int
	SourceIndex     int
	OriginalLine    int
	OriginalColumn  int
}

// Less orders segments by (GeneratedLine, GeneratedColumn), the ordering
// spec.md §4.3 and §8 require ("segments are emitted in ascending
// output-line, output-column order").
func (s Segment) Less(o Segment) bool {
	if s.GeneratedLine != o.GeneratedLine {
		return s.GeneratedLine < o.GeneratedLine
	}
	return s.GeneratedColumn < o.GeneratedColumn
}

// Map is an in-progress source-map v3 document.
type Map struct {
	File           string
	Sources        []string
	SourcesContent []*string // nil entry => omit this source's content
	Segments       []Segment
}

// SortSegments sorts Segments in ascending (line, column) order in place.
func (m *Map) SortSegments() {
	sort.SliceStable(m.Segments, func(i, j int) bool {
		return m.Segments[i].Less(m.Segments[j])
	})
}

// document is the JSON shape of a source-map v3 file.
type document struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// MarshalJSON encodes the map as a source-map v3 document.
func (m *Map) MarshalJSON() ([]byte, error) {
	doc := document{
		Version:        3,
		File:           m.File,
		Sources:        m.Sources,
		SourcesContent: m.SourcesContent,
		Names:          []string{},
		Mappings:       m.EncodeMappings(),
	}
	if doc.Sources == nil {
		doc.Sources = []string{}
	}
	if doc.SourcesContent == nil {
		doc.SourcesContent = []*string{}
	}
	return json.Marshal(doc)
}

// EncodeMappings builds the `;`-separated-per-line, `,`-separated-per-
// segment VLQ mappings string. Each field in a segment is encoded as a
// delta from the previous segment's corresponding field, per source-map
// v3 (the generated-column delta resets every line; the source-index and
// original-line/column deltas are relative to the previous segment
// overall, the same field-count-four form esbuild itself emits since this
// bundler records no names).
func (m *Map) EncodeMappings() string {
	if len(m.Segments) == 0 {
		return ""
	}
	var out []byte
	prevGeneratedColumn := 0
	prevSourceIndex := 0
	prevOriginalLine := 0
	prevOriginalColumn := 0
	currentLine := 0

	for _, seg := range m.Segments {
		for currentLine < seg.GeneratedLine {
			out = append(out, ';')
			currentLine++
			prevGeneratedColumn = 0
		}
		if len(out) > 0 && out[len(out)-1] != ';' {
			out = append(out, ',')
		}
		out = EncodeVLQ(out, seg.GeneratedColumn-prevGeneratedColumn)
		out = EncodeVLQ(out, seg.SourceIndex-prevSourceIndex)
		out = EncodeVLQ(out, seg.OriginalLine-prevOriginalLine)
		out = EncodeVLQ(out, seg.OriginalColumn-prevOriginalColumn)

		prevGeneratedColumn = seg.GeneratedColumn
		prevSourceIndex = seg.SourceIndex
		prevOriginalLine = seg.OriginalLine
		prevOriginalColumn = seg.OriginalColumn
	}
	return string(out)
}

// LineColumnOffset tracks a running output position across incremental
// text emission, the same bookkeeping the writer needs to translate each
// module's module-local segments into bundle-global offsets as it
// concatenates module bodies one after another.
type LineColumnOffset struct {
	Lines   int
	Columns int
}

// Add advances the offset by another offset's extent: if b spans any
// lines, a's column resets to b's trailing column; otherwise a's column
// just grows by b's.
func (a *LineColumnOffset) Add(b LineColumnOffset) {
	if b.Lines == 0 {
		a.Columns += b.Columns
	} else {
		a.Lines += b.Lines
		a.Columns = b.Columns
	}
}

// AdvanceString advances the offset by scanning text for line breaks.
// Per spec.md §9 Open Question (b), only '\n' is treated as a line break.
func (offset *LineColumnOffset) AdvanceString(text string) {
	columns := offset.Columns
	for _, c := range text {
		if c == '\n' {
			offset.Lines++
			columns = 0
			continue
		}
		if c <= 0xFFFF {
			columns++
		} else {
			columns += 2 // count in UTF-16 code units, like the Mozilla source-map library
		}
	}
	offset.Columns = columns
}
