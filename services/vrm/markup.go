package vrm

import (
	"errors"
	"strconv"
	"strings"
)

const (
	cdataOpen    = "<![CDATA["
	cdataClose   = "]]>"
	commentOpen  = "<!--"
	commentClose = "-->"
)

var errUnclosed = errors.New("unclosed element")

// element is one tag found by the lexer. Offsets are relative to the scanned text.
type element struct {
	Name       string
	Inner      string
	SelfClosed bool
	Start      int
	End        int
	InnerStart int
	InnerEnd   int
}

// skipOpaque returns the offset just past a CDATA section or XML comment
// starting at i, or i itself when neither starts there.
func skipOpaque(s string, i int) int {
	var open, closing string
	switch {
	case strings.HasPrefix(s[i:], cdataOpen):
		open, closing = cdataOpen, cdataClose
	case strings.HasPrefix(s[i:], commentOpen):
		open, closing = commentOpen, commentClose
	default:
		return i
	}
	j := strings.Index(s[i+len(open):], closing)
	if j < 0 {
		return len(s)
	}
	return i + len(open) + j + len(closing)
}

// indexOutside finds lit at or after from, ignoring CDATA sections and comments.
func indexOutside(s, lit string, from int) int {
	for i := from; i < len(s); {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			return -1
		}
		i += j
		if k := skipOpaque(s, i); k != i {
			i = k
			continue
		}
		if strings.HasPrefix(s[i:], lit) {
			return i
		}
		i++
	}
	return -1
}

func isNameByte(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case first:
		return false
	default:
		return b >= '0' && b <= '9' || b == '-' || b == '.' || b == ':'
	}
}

// parseOpenTag reads an opening tag at s[i]. Attributes are skipped.
func parseOpenTag(s string, i int) (name string, end int, selfClosed bool, ok bool) {
	if i+1 >= len(s) || s[i] != '<' || !isNameByte(s[i+1], true) {
		return "", 0, false, false
	}
	j := i + 2
	for j < len(s) && isNameByte(s[j], false) {
		j++
	}
	name = s[i+1 : j]
	var quote byte
	for k := j; k < len(s); k++ {
		switch c := s[k]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '<':
			return "", 0, false, false
		case c == '>':
			if k == j || s[j] == ' ' || s[j] == '\t' || s[j] == '\r' || s[j] == '\n' || s[j] == '/' {
				return name, k + 1, s[k-1] == '/', true
			}
			return "", 0, false, false
		}
	}
	return "", 0, false, false
}

// matchClose returns the offset of the closing tag matching an element named
// name whose content starts at from. Nested elements of the same name are counted.
func matchClose(s, name string, from int) int {
	closing := "</" + name + ">"
	depth := 0
	for i := from; i < len(s); {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			return -1
		}
		i += j
		if k := skipOpaque(s, i); k != i {
			i = k
			continue
		}
		if strings.HasPrefix(s[i:], closing) {
			if depth == 0 {
				return i
			}
			depth--
			i += len(closing)
			continue
		}
		if n, end, self, ok := parseOpenTag(s, i); ok {
			if n == name && !self {
				depth++
			}
			i = end
			continue
		}
		i++
	}
	return -1
}

// elementAt reads the element whose opening tag starts at s[i].
func elementAt(s string, i int) (element, bool, error) {
	name, tagEnd, self, ok := parseOpenTag(s, i)
	if !ok {
		return element{}, false, nil
	}
	if self {
		return element{Name: name, SelfClosed: true, Start: i, End: tagEnd, InnerStart: tagEnd, InnerEnd: tagEnd}, true, nil
	}
	c := matchClose(s, name, tagEnd)
	if c < 0 {
		return element{Name: name, Start: i}, true, errUnclosed
	}
	return element{
		Name:       name,
		Inner:      s[tagEnd:c],
		Start:      i,
		End:        c + len(name) + 3,
		InnerStart: tagEnd,
		InnerEnd:   c,
	}, true, nil
}

// nextElement returns the next element at or after from. Text, closing tags,
// CDATA sections and comments between elements are skipped.
func nextElement(s string, from int) (element, bool, error) {
	for i := from; i < len(s); {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			return element{}, false, nil
		}
		i += j
		if k := skipOpaque(s, i); k != i {
			i = k
			continue
		}
		el, ok, err := elementAt(s, i)
		if ok {
			return el, true, err
		}
		i++
	}
	return element{}, false, nil
}

// elements returns all top-level elements of s.
func elements(s string) ([]element, error) {
	var out []element
	for pos := 0; ; {
		el, ok, err := nextElement(s, pos)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, el)
		pos = el.End
	}
}

// findElement locates the first element named name anywhere in s.
func findElement(s, name string, from int) (element, bool, error) {
	for i := from; ; {
		i = indexOutside(s, "<"+name, i)
		if i < 0 {
			return element{}, false, nil
		}
		el, ok, err := elementAt(s, i)
		if ok && el.Name == name {
			return el, true, err
		}
		i++
	}
}

var entityDecoder = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

// decodeText turns a field's raw content into its value. Literal runs are
// entity-decoded; CDATA sections are taken verbatim. Whitespace-only literal
// runs next to CDATA sections are layout, not content.
func decodeText(raw string) string {
	if !strings.Contains(raw, cdataOpen) {
		return entityDecoder.Replace(raw)
	}
	var b strings.Builder
	literal := func(lit string) {
		if strings.TrimSpace(lit) != "" {
			b.WriteString(entityDecoder.Replace(lit))
		}
	}
	for i := 0; i < len(raw); {
		j := strings.Index(raw[i:], cdataOpen)
		if j < 0 {
			literal(raw[i:])
			break
		}
		literal(raw[i : i+j])
		start := i + j + len(cdataOpen)
		k := strings.Index(raw[start:], cdataClose)
		if k < 0 {
			b.WriteString(raw[start:])
			break
		}
		b.WriteString(raw[start : start+k])
		i = start + k + len(cdataClose)
	}
	return b.String()
}

// decodeBlockText is decodeText for payload blocks, which surround literal
// content with layout whitespace.
func decodeBlockText(raw string) string {
	if strings.Contains(raw, cdataOpen) {
		return decodeText(raw)
	}
	return strings.TrimSpace(entityDecoder.Replace(raw))
}

// needsVerbatim reports whether text must be wrapped in CDATA.
func needsVerbatim(text string) bool {
	return strings.ContainsAny(text, "<>&")
}

func cdata(text string) string {
	return cdataOpen + strings.ReplaceAll(text, cdataClose, "]]"+cdataClose+cdataOpen+">") + cdataClose
}

func encodeText(text string) string {
	if needsVerbatim(text) {
		return cdata(text)
	}
	return text
}

// textElement renders a text field; empty text renders self-closed.
func textElement(name, text string) string {
	if text == "" {
		return "<" + name + "/>"
	}
	return "<" + name + ">" + encodeText(text) + "</" + name + ">"
}

func intElement(name string, v int) string {
	return "<" + name + ">" + strconv.Itoa(v) + "</" + name + ">"
}

func parseInt(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(decodeText(raw)))
}

func detectLineEnding(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

func joinLines(lines []string, le string) string {
	return strings.Join(lines, le)
}

func containsCDATA(s string) bool {
	return strings.Contains(s, cdataOpen)
}
