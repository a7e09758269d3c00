package vrm

import (
	"errors"
	"fmt"
	"sort"
)

// ContentBlock names an editable payload block.
type ContentBlock string

const (
	ContentHTML   ContentBlock = blockHTML
	ContentScript ContentBlock = blockScript
)

// ParseContentBlock validates a content block name.
func ParseContentBlock(name string) (ContentBlock, error) {
	switch b := ContentBlock(name); b {
	case ContentHTML, ContentScript:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContent, name)
	}
}

// ItemKind is the pending operation of a dirty item.
type ItemKind int

const (
	ItemUpsert ItemKind = iota
	ItemRemove
	ItemContent
)

func (k ItemKind) String() string {
	switch k {
	case ItemUpsert:
		return "upsert"
	case ItemRemove:
		return "remove"
	case ItemContent:
		return "content"
	default:
		return "unknown"
	}
}

// DirtyItem is one change not yet written back to the document text.
type DirtyItem struct {
	Kind    ItemKind
	Section Section
	ID      int
	// Component is the current record for upserts.
	Component Component
	Content   ContentBlock
	Text      string
	// Added marks a component created since the last commit. It is not in
	// the text yet, so it is appended rather than matched by id.
	Added bool

	gen uint64
	seq uint64
}

type dirtyKey struct {
	section Section
	id      int
	content ContentBlock
}

type dirtyEntry struct {
	kind  ItemKind
	added bool
	gen   uint64
	seq   uint64
}

// Model owns a document and tracks what changed since the last commit.
// It is not safe for concurrent use.
type Model struct {
	doc   *Document
	dirty map[dirtyKey]dirtyEntry
	gen   uint64
	seq   uint64
}

// NewModel takes a copy of doc.
func NewModel(doc *Document) *Model {
	return &Model{doc: doc.Clone(), dirty: make(map[dirtyKey]dirtyEntry)}
}

func (m *Model) mark(key dirtyKey, kind ItemKind) {
	m.gen++
	e, ok := m.dirty[key]
	if !ok {
		m.seq++
		e.seq = m.seq
	}
	e.kind, e.gen = kind, m.gen
	m.dirty[key] = e
}

// markAdded records a new component. Re-adding an id whose removal is still
// pending reuses the block in the text instead.
func (m *Model) markAdded(key dirtyKey) {
	prev, ok := m.dirty[key]
	m.mark(key, ItemUpsert)
	if !ok || prev.added {
		e := m.dirty[key]
		e.added = true
		m.dirty[key] = e
	}
}

func (m *Model) skipped(section Section, id int) bool {
	for _, s := range m.doc.Skipped[section] {
		if s == id {
			return true
		}
	}
	return false
}

func (m *Model) index(section Section, id int) int {
	for i, c := range m.doc.Components(section) {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the component with the given id.
func (m *Model) Get(section Section, id int) (Component, error) {
	if !section.Valid() {
		return Component{}, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	i := m.index(section, id)
	if i < 0 {
		return Component{}, fmt.Errorf("%w: %s/%d", ErrNotFound, section, id)
	}
	return m.doc.Components(section)[i].Clone(), nil
}

// List returns copies of a section's components in file order.
func (m *Model) List(section Section) []Component {
	return cloneComponents(m.doc.Components(section))
}

func (m *Model) check(c Component) error {
	if !c.Section.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSection, c.Section)
	}
	if !valuesMatch(c.Type, c.Values) {
		return fmt.Errorf("%w: %T for %s", ErrValuesMismatch, c.Values, c.Type)
	}
	return nil
}

// Add appends c to its section. The id must be free in that section,
// including the ids of blocks skipped at load; use NextID to allocate one.
func (m *Model) Add(c Component) error {
	if err := m.check(c); err != nil {
		return err
	}
	if m.index(c.Section, c.ID) >= 0 || m.skipped(c.Section, c.ID) {
		return fmt.Errorf("%w: %s/%d", ErrDuplicateID, c.Section, c.ID)
	}
	c = c.Clone()
	c.Connections = normalizeConnections(c.Connections)
	list := m.doc.list(c.Section)
	*list = append(*list, c)
	m.markAdded(dirtyKey{section: c.Section, id: c.ID})
	return nil
}

// Update replaces the record with the same section and id. Connection
// targets are not checked.
func (m *Model) Update(c Component) error {
	if err := m.check(c); err != nil {
		return err
	}
	i := m.index(c.Section, c.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s/%d", ErrNotFound, c.Section, c.ID)
	}
	c = c.Clone()
	c.Connections = normalizeConnections(c.Connections)
	m.doc.Components(c.Section)[i] = c
	m.mark(dirtyKey{section: c.Section, id: c.ID}, ItemUpsert)
	return nil
}

// UpdateAll replaces several records at once. Every record is checked
// first; if any is rejected nothing is changed.
func (m *Model) UpdateAll(cs ...Component) error {
	var errs []error
	for _, c := range cs {
		if err := m.check(c); err != nil {
			errs = append(errs, err)
			continue
		}
		if m.index(c.Section, c.ID) < 0 {
			errs = append(errs, fmt.Errorf("%w: %s/%d", ErrNotFound, c.Section, c.ID))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for _, c := range cs {
		if err := m.Update(c); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a component. Connections pointing at it are left alone;
// see DetachConnections.
func (m *Model) Remove(section Section, id int) error {
	if !section.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	i := m.index(section, id)
	if i < 0 {
		return fmt.Errorf("%w: %s/%d", ErrNotFound, section, id)
	}
	list := m.doc.list(section)
	*list = append((*list)[:i:i], (*list)[i+1:]...)
	m.mark(dirtyKey{section: section, id: id}, ItemRemove)
	return nil
}

// UpdateContent replaces the html text or the script sub-block.
func (m *Model) UpdateContent(name ContentBlock, text string) error {
	switch name {
	case ContentHTML:
		m.doc.HTML = text
	case ContentScript:
		m.doc.Script, m.doc.HasScript = text, true
	default:
		return fmt.Errorf("%w: %q", ErrUnknownContent, name)
	}
	m.mark(dirtyKey{content: name}, ItemContent)
	return nil
}

// Content returns the current text of a content block.
func (m *Model) Content(name ContentBlock) (string, error) {
	switch name {
	case ContentHTML:
		return m.doc.HTML, nil
	case ContentScript:
		return m.doc.Script, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContent, name)
	}
}

// Dirty returns the pending changes in the order they were first made.
func (m *Model) Dirty() []DirtyItem {
	items := make([]DirtyItem, 0, len(m.dirty))
	for key, e := range m.dirty {
		item := DirtyItem{Kind: e.kind, Section: key.section, ID: key.id, Added: e.added, gen: e.gen, seq: e.seq}
		switch e.kind {
		case ItemUpsert:
			i := m.index(key.section, key.id)
			if i < 0 {
				continue
			}
			item.Component = m.doc.Components(key.section)[i].Clone()
		case ItemContent:
			item.Content = key.content
			item.Text, _ = m.Content(key.content)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	return items
}

// IsDirty reports whether any change is pending.
func (m *Model) IsDirty() bool { return len(m.dirty) > 0 }

// ClearDirty drops the given items once they have been written. An item
// changed again after it was read from Dirty stays pending; if the written
// item added the component, the pending change now targets the block in
// the text. With no arguments every pending change is dropped.
func (m *Model) ClearDirty(items ...DirtyItem) {
	if len(items) == 0 {
		clear(m.dirty)
		return
	}
	for _, item := range items {
		key := dirtyKey{section: item.Section, id: item.ID, content: item.Content}
		e, ok := m.dirty[key]
		switch {
		case !ok:
		case e.gen == item.gen:
			delete(m.dirty, key)
		case item.Added && item.Kind == ItemUpsert:
			e.added = false
			m.dirty[key] = e
		}
	}
}

// NextID allocates an id above every id in both sections, skipped blocks
// included.
func (m *Model) NextID() int {
	next := 1
	for _, s := range Sections {
		for _, c := range m.doc.Components(s) {
			if c.ID >= next {
				next = c.ID + 1
			}
		}
		for _, id := range m.doc.Skipped[s] {
			if id >= next {
				next = id + 1
			}
		}
	}
	return next
}

// DetachConnections zeroes every connection in section that targets one of
// ids and returns the ids of the components it changed.
func (m *Model) DetachConnections(section Section, ids ...int) []int {
	targets := make(map[int]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}
	return m.rewire(section, func(target int) bool { return targets[target] })
}

// ClearDanglingConnections zeroes connections whose target does not exist
// in the same section.
func (m *Model) ClearDanglingConnections(section Section) []int {
	present := make(map[int]bool)
	for _, c := range m.doc.Components(section) {
		present[c.ID] = true
	}
	return m.rewire(section, func(target int) bool { return !present[target] })
}

func (m *Model) rewire(section Section, drop func(target int) bool) []int {
	changed := []int{}
	list := m.doc.Components(section)
	for i := range list {
		touched := false
		for slot, target := range list[i].Connections {
			if target != 0 && drop(target) {
				list[i].Connections[slot] = 0
				touched = true
			}
		}
		if touched {
			changed = append(changed, list[i].ID)
			m.mark(dirtyKey{section: section, id: list[i].ID}, ItemUpsert)
		}
	}
	return changed
}

// FindDanglingConnections runs the dangling connection query on the current state.
func (m *Model) FindDanglingConnections() []DanglingConnection {
	return FindDanglingConnections(m.doc)
}

// FindDuplicateIDs runs the duplicate id query on the current state.
func (m *Model) FindDuplicateIDs() []DuplicateID {
	return FindDuplicateIDs(m.doc)
}

// Snapshot returns a deep copy of the current document.
func (m *Model) Snapshot() *Document {
	return m.doc.Clone()
}
