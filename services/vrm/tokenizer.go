package vrm

import (
	"regexp"
	"strings"
)

const (
	componentOpen  = "<c>"
	componentClose = "</c>"
)

// Span is the raw text of one component block inside a section.
type Span struct {
	Start int
	End   int
	Text  string
}

// tailShape matches the end of a component body: the y coordinate, the
// comment field and the watchpoint marker, right before the real close tag.
var tailShape = regexp.MustCompile(`(?s)</y>\s*(?:<c\s*/>|<c>.*</c>)\s*(?:<wp\s*/>|<wp>[^<]*</wp>)\s*$`)

// ExtractSpans splits a section's inner text into component spans.
//
// The component wrapper and the comment field share the tag name "c", so a
// plain open/close match ends a component early whenever its comment is
// present. Spans are therefore found in two phases: candidate heads (a <c>
// directly followed by the id tag) and, for each head, the first </c> whose
// preceding text has the component tail shape. The search stops at the next
// head unless that head cannot close on its own, in which case it is taken
// to be comment text and the search continues past it. A head without a
// valid tail is dropped with a warning.
func ExtractSpans(section string) ([]Span, []Warning) {
	var (
		spans    []Span
		warnings []Warning
	)
	var heads []int
	for h := findHead(section, 0); h >= 0; h = findHead(section, h+len(componentOpen)) {
		heads = append(heads, h)
	}
	limitAt := func(j int) int {
		if j < len(heads) {
			return heads[j]
		}
		return len(section)
	}

	for i := 0; i < len(heads); {
		head, j := heads[i], i+1
		end := closeByTail(section, head, limitAt(j))
		for end < 0 && j < len(heads) && closeByTail(section, heads[j], limitAt(j+1)) < 0 {
			j++
			end = closeByTail(section, head, limitAt(j))
		}
		if end < 0 {
			warnings = append(warnings, Warning{
				Kind:        KindComponent,
				ComponentID: peekID(section[head:limitAt(i+1)]),
				Offset:      head,
				Message:     "component has no closing tail (y, comment, watchpoint); block dropped",
			})
			i++
			continue
		}
		spans = append(spans, Span{Start: head, End: end, Text: section[head:end]})
		i = j
	}
	return spans, warnings
}

// findHead returns the offset of the next component wrapper at or after from.
func findHead(s string, from int) int {
	for i := from; ; {
		i = indexOutside(s, componentOpen, i)
		if i < 0 {
			return -1
		}
		rest := strings.TrimLeft(s[i+len(componentOpen):], " \t\r\n")
		if strings.HasPrefix(rest, "<n>") || strings.HasPrefix(rest, "<n/>") || strings.HasPrefix(rest, "<n ") {
			return i
		}
		i += len(componentOpen)
	}
}

// closeByTail returns the end offset of the component starting at head, or -1.
func closeByTail(s string, head, limit int) int {
	for q := indexOutside(s, componentClose, head+len(componentOpen)); q >= 0 && q < limit; q = indexOutside(s, componentClose, q+len(componentClose)) {
		if tailShape.MatchString(s[head:q]) {
			return q + len(componentClose)
		}
	}
	return -1
}

// peekID reads the id of a component block without decoding the rest, 0 when unreadable.
func peekID(span string) int {
	body := strings.TrimPrefix(span, componentOpen)
	el, ok, err := nextElement(body, 0)
	if !ok || err != nil || el.Name != "n" {
		return 0
	}
	id, err := parseInt(el.Inner)
	if err != nil {
		return 0
	}
	return id
}
