package vrm

import "strings"

// ApplyPatch writes the dirty items into original and returns the new text.
// Text outside the affected spans is left byte-for-byte intact. Each item
// re-locates its target in the text produced by the previous one, so no
// offsets are carried between items.
func ApplyPatch(original string, items []DirtyItem) (string, error) {
	le := detectLineEnding(original)
	text := original
	for _, item := range items {
		var err error
		switch item.Kind {
		case ItemUpsert:
			text, err = patchUpsert(text, item.Section, item.Component, item.Added, le)
		case ItemRemove:
			// An added component removed before it was written has no block.
			if !item.Added {
				text, err = patchRemove(text, item.Section, item.ID)
			}
		case ItemContent:
			text, err = patchContent(text, item.Content, item.Text)
		}
		if err != nil {
			return "", err
		}
	}
	return text, nil
}

func splice(s string, start, end int, repl string) string {
	return s[:start] + repl + s[end:]
}

// locate returns the section element and the absolute span of component id.
func locate(text string, section Section, id int) (element, Span, bool, error) {
	if !section.Valid() {
		return element{}, Span{}, false, ErrInvalidSection
	}
	el, err := requireBlock(text, section.tag())
	if err != nil {
		return element{}, Span{}, false, err
	}
	spans, _ := ExtractSpans(el.Inner)
	for _, span := range spans {
		if peekID(span.Text) == id {
			span.Start += el.InnerStart
			span.End += el.InnerStart
			return el, span, true, nil
		}
	}
	return el, Span{}, false, nil
}

// patchUpsert replaces the block of c, or appends c to the section when it
// has no block or was just added. A block in the text with the same id as an
// added component belongs to something else and is left alone.
func patchUpsert(text string, section Section, c Component, added bool, le string) (string, error) {
	el, span, found, err := locate(text, section, c.ID)
	if err != nil {
		return "", err
	}
	rendered := renderComponent(c, le)
	if found && !added {
		return splice(text, span.Start, span.End, rendered), nil
	}
	if el.SelfClosed {
		return splice(text, el.Start, el.End, "<"+el.Name+">"+le+rendered+le+"</"+el.Name+">"), nil
	}
	// Append within the section, on its own line before the closing tag.
	lineStart := strings.LastIndexByte(text[:el.InnerEnd], '\n') + 1
	if lineStart > el.InnerStart && strings.TrimSpace(text[lineStart:el.InnerEnd]) == "" {
		return splice(text, lineStart, lineStart, rendered+le), nil
	}
	return splice(text, el.InnerEnd, el.InnerEnd, le+rendered+le), nil
}

func patchRemove(text string, section Section, id int) (string, error) {
	_, span, found, err := locate(text, section, id)
	if err != nil || !found {
		return text, err
	}
	start, end := span.Start, span.End
	lineStart := start
	for lineStart > 0 && (text[lineStart-1] == ' ' || text[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart == 0 || text[lineStart-1] == '\n' {
		start = lineStart
		for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
			end++
		}
		switch {
		case strings.HasPrefix(text[end:], "\r\n"):
			end += 2
		case strings.HasPrefix(text[end:], "\n"):
			end++
		}
	}
	return splice(text, start, end, ""), nil
}

func patchContent(text string, name ContentBlock, value string) (string, error) {
	html, err := requireBlock(text, blockHTML)
	if err != nil {
		return "", err
	}
	if html.SelfClosed {
		var inner string
		switch name {
		case ContentHTML:
			inner = cdata(value)
		case ContentScript:
			inner = renderScript(value)
		default:
			return "", ErrUnknownContent
		}
		return splice(text, html.Start, html.End, "<"+blockHTML+">"+inner+"</"+blockHTML+">"), nil
	}
	script, hasScript, serr := findElement(html.Inner, blockScript, 0)
	if serr != nil {
		hasScript = false
	}
	switch name {
	case ContentHTML:
		if !hasScript {
			return splice(text, html.InnerStart, html.InnerEnd, replaceText(html.Inner, value)), nil
		}
		// The script stays where it is; the text goes to the side of it
		// that held text, before it when neither or both did.
		before, after := html.Inner[:script.Start], html.Inner[script.End:]
		if strings.TrimSpace(before) == "" && strings.TrimSpace(after) != "" {
			after = replaceText(after, value)
		} else {
			before, after = replaceText(before, value), dropText(after)
		}
		inner := before + html.Inner[script.Start:script.End] + after
		return splice(text, html.InnerStart, html.InnerEnd, inner), nil
	case ContentScript:
		if hasScript {
			if script.SelfClosed {
				return splice(text, html.InnerStart+script.Start, html.InnerStart+script.End, renderScript(value)), nil
			}
			return splice(text, html.InnerStart+script.InnerStart, html.InnerStart+script.InnerEnd, cdata(value)), nil
		}
		return splice(text, html.InnerEnd, html.InnerEnd, renderScript(value)), nil
	default:
		return "", ErrUnknownContent
	}
}

// replaceText swaps the content of a text run for value as CDATA, keeping
// the run's leading and trailing whitespace.
func replaceText(run, value string) string {
	body := strings.TrimSpace(run)
	if body == "" {
		return run + cdata(value)
	}
	lead := strings.Index(run, body)
	return run[:lead] + cdata(value) + run[lead+len(body):]
}

// dropText removes the content of a text run and keeps its whitespace.
func dropText(run string) string {
	body := strings.TrimSpace(run)
	if body == "" {
		return run
	}
	lead := strings.Index(run, body)
	return run[:lead] + run[lead+len(body):]
}
