package vrm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tailFields splits what follows </y>: the comment field (self-closed or
// with content) and the watchpoint marker. The comment is anchored between
// the two, so its text may itself contain c-shaped tags.
var tailFields = regexp.MustCompile(`(?s)^\s*(?:(<c\s*/>)|<c>(.*)</c>)\s*(?:<wp\s*/>|<wp>([^<]*)</wp>)\s*$`)

// ParseComponent decodes one component span produced by ExtractSpans.
// A span missing a mandatory field (id, type, x, y) yields a
// *ComponentParseWarning; value and connection problems are returned as
// warnings next to the decoded component.
func ParseComponent(section Section, span string) (Component, []Warning, error) {
	c := Component{Section: section}
	fail := func(format string, args ...any) (Component, []Warning, error) {
		return Component{}, nil, &ComponentParseWarning{Section: section, ComponentID: c.ID, Reason: fmt.Sprintf(format, args...)}
	}
	if !strings.HasPrefix(span, componentOpen) || !strings.HasSuffix(span, componentClose) {
		return fail("span is not a component block")
	}
	body := span[len(componentOpen) : len(span)-len(componentClose)]

	var (
		warnings                       []Warning
		haveID, haveType, haveX, haveY bool
		haveValues                     bool
		valuesRaw, tail                string
	)
	warn := func(kind WarningKind, format string, args ...any) {
		warnings = append(warnings, Warning{Kind: kind, Section: section, Message: fmt.Sprintf(format, args...)})
	}

fields:
	for pos := 0; ; {
		el, ok, err := nextElement(body, pos)
		if err != nil {
			return fail("<%s> is not closed", el.Name)
		}
		if !ok {
			break
		}
		pos = el.End
		switch el.Name {
		case "n":
			id, err := parseInt(el.Inner)
			if err != nil {
				return fail("invalid id %q", el.Inner)
			}
			c.ID, haveID = id, true
		case "t":
			c.Type = Type(strings.TrimSpace(decodeText(el.Inner)))
			haveType = c.Type != ""
		case "values":
			valuesRaw, haveValues = el.Inner, true
		case "j":
			target := 0
			if text := strings.TrimSpace(decodeText(el.Inner)); text != "" {
				v, err := strconv.Atoi(text)
				if err != nil {
					warn(KindComponent, "connection %d has non-numeric target %q; treated as unconnected", len(c.Connections), text)
				} else {
					target = v
				}
			}
			c.Connections = append(c.Connections, target)
		case "x":
			x, err := parseInt(el.Inner)
			if err != nil {
				return fail("invalid x %q", el.Inner)
			}
			c.X, haveX = x, true
		case "y":
			y, err := parseInt(el.Inner)
			if err != nil {
				return fail("invalid y %q", el.Inner)
			}
			c.Y, haveY = y, true
			tail = body[el.End:]
			break fields
		default:
			c.Extra = append(c.Extra, body[el.Start:el.End])
		}
	}

	switch {
	case !haveID:
		return fail("missing id")
	case !haveType:
		return fail("missing type")
	case !haveX:
		return fail("missing x")
	case !haveY:
		return fail("missing y")
	}

	m := tailFields.FindStringSubmatch(tail)
	if m == nil {
		return fail("malformed comment/watchpoint tail")
	}
	if m[1] == "" {
		comment := decodeText(m[2])
		c.Comment = &comment
	}
	switch strings.TrimSpace(m[3]) {
	case "":
		c.Watchpoint = WatchUnset
	case "0", "false":
		c.Watchpoint = WatchOff
	case "1", "true":
		c.Watchpoint = WatchOn
	default:
		warn(KindComponent, "unrecognised watchpoint %q; treated as unset", m[3])
	}

	if len(c.Connections) > 2 {
		warn(KindComponent, "%d connections found; surplus entries preserved", len(c.Connections))
	}
	c.Connections = normalizeConnections(c.Connections)

	if haveValues {
		v, vw := DecodeValues(c.Type, valuesRaw)
		c.Values = v
		for _, w := range vw {
			w.Section = section
			warnings = append(warnings, w)
		}
	}
	for i := range warnings {
		warnings[i].ComponentID = c.ID
	}
	return c, warnings, nil
}

// RenderComponent encodes c as a component block, the inverse of ParseComponent.
func RenderComponent(c Component) string {
	return renderComponent(c, "\n")
}

func renderComponent(c Component, le string) string {
	lines := []string{
		componentOpen,
		intElement("n", c.ID),
		textElement("t", string(c.Type)),
	}
	if c.Values != nil {
		lines = append(lines, "<values>"+encodeValues(c.Values, le)+"</values>")
	}
	for _, target := range normalizeConnections(c.Connections) {
		if target == 0 {
			lines = append(lines, "<j/>")
		} else {
			lines = append(lines, intElement("j", target))
		}
	}
	lines = append(lines, c.Extra...)
	lines = append(lines, intElement("x", c.X), intElement("y", c.Y))
	if c.Comment == nil {
		lines = append(lines, "<c/>")
	} else {
		lines = append(lines, "<c>"+encodeText(*c.Comment)+"</c>")
	}
	switch c.Watchpoint {
	case WatchOff:
		lines = append(lines, "<wp>0</wp>")
	case WatchOn:
		lines = append(lines, "<wp>1</wp>")
	default:
		lines = append(lines, "<wp/>")
	}
	lines = append(lines, componentClose)
	return joinLines(lines, le)
}
