package vrm

import (
	"sort"
	"strings"
)

const (
	blockHTML   = "html"
	blockScript = "script"
)

// metadataBlocks are preserved verbatim and never interpreted.
var metadataBlocks = []string{"languages", "scripts", "functionheader"}

// ParseDocument builds a Document from raw file text. Only a missing
// required block (preproc, postproc, html) is fatal; problems inside
// components are collected as warnings and the offending components skipped.
func ParseDocument(raw string) (*Document, []Warning, error) {
	doc := &Document{LineEnding: detectLineEnding(raw)}
	var warnings []Warning

	for _, section := range Sections {
		el, err := requireBlock(raw, section.tag())
		if err != nil {
			return nil, nil, err
		}
		components, skipped, ws := parseSection(section, el.Inner, el.InnerStart)
		*doc.list(section) = components
		if len(skipped) > 0 {
			if doc.Skipped == nil {
				doc.Skipped = make(map[Section][]int)
			}
			doc.Skipped[section] = skipped
		}
		warnings = append(warnings, ws...)
	}

	htmlEl, err := requireBlock(raw, blockHTML)
	if err != nil {
		return nil, nil, err
	}
	doc.HTML, doc.Script, doc.HasScript = splitHTML(htmlEl.Inner)

	type located struct {
		start int
		text  string
	}
	var meta []located
	for _, name := range metadataBlocks {
		el, ok, err := findElement(raw, name, 0)
		if ok && err == nil {
			meta = append(meta, located{el.Start, raw[el.Start:el.End]})
		}
	}
	sort.Slice(meta, func(i, j int) bool { return meta[i].start < meta[j].start })
	for _, m := range meta {
		doc.Metadata = append(doc.Metadata, m.text)
	}

	for _, w := range warnings {
		parseWarnings.WithLabelValues(string(w.Kind)).Inc()
	}
	return doc, warnings, nil
}

func requireBlock(raw, name string) (element, error) {
	el, ok, err := findElement(raw, name, 0)
	if !ok {
		return element{}, &StructuralParseError{Block: name, Reason: "not found"}
	}
	if err != nil {
		return element{}, &StructuralParseError{Block: name, Reason: "is not closed"}
	}
	return el, nil
}

// parseSection decodes the components of one section and returns the ids of
// the blocks it had to skip. offset locates the section inner text in the
// file so warnings carry file offsets.
func parseSection(section Section, inner string, offset int) ([]Component, []int, []Warning) {
	spans, warnings := ExtractSpans(inner)
	var skipped []int
	for i := range warnings {
		warnings[i].Section = section
		warnings[i].Offset += offset
		if warnings[i].ComponentID != 0 {
			skipped = append(skipped, warnings[i].ComponentID)
		}
	}
	components := make([]Component, 0, len(spans))
	for _, span := range spans {
		c, ws, err := ParseComponent(section, span.Text)
		if err != nil {
			if cw, ok := err.(*ComponentParseWarning); ok {
				if cw.ComponentID == 0 {
					cw.ComponentID = peekID(span.Text)
				}
				warnings = append(warnings, cw.warning(offset+span.Start))
			}
			if id := peekID(span.Text); id != 0 {
				skipped = append(skipped, id)
			}
			continue
		}
		for _, w := range ws {
			w.Offset = offset + span.Start
			warnings = append(warnings, w)
		}
		components = append(components, c)
	}
	return components, skipped, warnings
}

// splitHTML separates the html payload from its embedded script sub-block.
func splitHTML(inner string) (html, script string, hasScript bool) {
	el, ok, err := findElement(inner, blockScript, 0)
	if !ok || err != nil {
		return decodeBlockText(inner), "", false
	}
	return decodeBlockText(inner[:el.Start] + inner[el.End:]), decodeBlockText(el.Inner), true
}

// RenderDocument regenerates the whole file from the model. Normal edits go
// through ApplyPatch instead; this is for export and save-as.
func RenderDocument(doc *Document) string {
	le := doc.LineEnding
	if le == "" {
		le = "\n"
	}
	var b strings.Builder
	for _, m := range doc.Metadata {
		b.WriteString(m)
		b.WriteString(le)
	}
	writeSection := func(s Section) {
		b.WriteString("<" + s.tag() + ">" + le)
		for _, c := range doc.Components(s) {
			b.WriteString(renderComponent(c, le))
			b.WriteString(le)
		}
		b.WriteString("</" + s.tag() + ">" + le)
	}
	writeSection(SectionPre)
	b.WriteString("<" + blockHTML + ">" + cdata(doc.HTML))
	if doc.HasScript {
		b.WriteString(renderScript(doc.Script))
	}
	b.WriteString("</" + blockHTML + ">" + le)
	writeSection(SectionPost)
	return b.String()
}

func renderScript(script string) string {
	return "<" + blockScript + ">" + cdata(script) + "</" + blockScript + ">"
}
