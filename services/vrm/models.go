package vrm

import "strings"

// Section identifies one of the two ordered component lists of a document.
type Section string

const (
	SectionPre  Section = "pre"
	SectionPost Section = "post"
)

// Sections lists the document sections in file order.
var Sections = []Section{SectionPre, SectionPost}

// tag returns the name of the element wrapping the section in the file.
func (s Section) tag() string {
	switch s {
	case SectionPre:
		return "preproc"
	case SectionPost:
		return "postproc"
	default:
		return ""
	}
}

// Valid reports whether s is one of the known sections.
func (s Section) Valid() bool { return s.tag() != "" }

// ParseSection accepts both the short names and the element names.
func ParseSection(v string) (Section, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pre", "preproc":
		return SectionPre, true
	case "post", "postproc":
		return SectionPost, true
	default:
		return "", false
	}
}

// Type is the component type tag stored in the <t> element.
type Type string

const (
	TypeTransaction       Type = "TRANSACTION"
	TypeSelectQuery       Type = "SELECTQUERY"
	TypeInsertUpdateQuery Type = "INSERTUPDATEQUERY"
	TypeScriptFunction    Type = "CSF"
	TypeScript            Type = "SCRIPT"
	TypeCondition         Type = "IF"
	TypeError             Type = "ERROR"
	TypeMultiSet          Type = "SET"
	TypeMath              Type = "MATH"
	TypeExternal          Type = "EXTERNAL"
	TypeTemplate          Type = "TEMPLATE"
)

// Known reports whether t has a dedicated values schema.
func (t Type) Known() bool {
	_, ok := codecs[t]
	return ok
}

// Watchpoint is the tri-state debug marker of a component.
type Watchpoint int

const (
	WatchUnset Watchpoint = iota
	WatchOff
	WatchOn
)

func (w Watchpoint) String() string {
	switch w {
	case WatchOff:
		return "false"
	case WatchOn:
		return "true"
	default:
		return "unset"
	}
}

// Component is one node of the workflow graph.
type Component struct {
	ID         int
	Type       Type
	Section    Section
	X, Y       int
	Comment    *string // nil when the comment tag is self-closed
	Watchpoint Watchpoint
	// Connections holds at least two slots: 0 = primary, 1 = secondary.
	// Surplus slots found in the file are kept as-is.
	Connections []int
	Values      Values // nil when the component has no values block
	// Extra keeps unrecognised child elements verbatim.
	Extra []string
}

// Primary returns the primary connection target, 0 when unconnected.
func (c Component) Primary() int { return c.connection(0) }

// Secondary returns the secondary connection target, 0 when unconnected.
func (c Component) Secondary() int { return c.connection(1) }

func (c Component) connection(slot int) int {
	if slot < len(c.Connections) {
		return c.Connections[slot]
	}
	return 0
}

// Clone returns a deep copy of c.
func (c Component) Clone() Component {
	out := c
	if c.Comment != nil {
		s := *c.Comment
		out.Comment = &s
	}
	out.Connections = cloneSlice(c.Connections)
	out.Extra = cloneSlice(c.Extra)
	out.Values = cloneValues(c.Values)
	return out
}

// normalizeConnections right-pads the connection list to two slots.
func normalizeConnections(conns []int) []int {
	out := append(make([]int, 0, 2), conns...)
	for len(out) < 2 {
		out = append(out, 0)
	}
	return out
}

// StringPtr is a helper for building comments.
func StringPtr(s string) *string { return &s }

// Document is a whole VRM file.
type Document struct {
	Pre  []Component
	Post []Component
	HTML string
	// Script is the script sub-block embedded in the html block.
	Script    string
	HasScript bool
	// Metadata holds the languages/scripts/function header blocks verbatim.
	Metadata   []string
	LineEnding string
	// Skipped holds, per section, the ids of blocks left out at load. The
	// blocks stay in the text, so their ids are not free.
	Skipped map[Section][]int
}

// Components returns the ordered components of a section.
func (d *Document) Components(s Section) []Component {
	switch s {
	case SectionPre:
		return d.Pre
	case SectionPost:
		return d.Post
	default:
		return nil
	}
}

func (d *Document) list(s Section) *[]Component {
	switch s {
	case SectionPre:
		return &d.Pre
	case SectionPost:
		return &d.Post
	default:
		return nil
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := *d
	out.Pre = cloneComponents(d.Pre)
	out.Post = cloneComponents(d.Post)
	out.Metadata = cloneSlice(d.Metadata)
	if d.Skipped != nil {
		out.Skipped = make(map[Section][]int, len(d.Skipped))
		for s, ids := range d.Skipped {
			out.Skipped[s] = cloneSlice(ids)
		}
	}
	return &out
}

func cloneComponents(in []Component) []Component {
	if in == nil {
		return nil
	}
	out := make([]Component, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
