package vrm

import "sort"

// DanglingConnection is a connection slot whose target is not in the same section.
type DanglingConnection struct {
	Section     Section `json:"section" yaml:"section"`
	ComponentID int     `json:"componentId" yaml:"component_id"`
	Slot        int     `json:"slot" yaml:"slot"`
	Target      int     `json:"target" yaml:"target"`
}

// DuplicateID is an id used by more than one component of a section.
type DuplicateID struct {
	Section Section `json:"section" yaml:"section"`
	ID      int     `json:"id" yaml:"id"`
	Count   int     `json:"count" yaml:"count"`
}

// FindDanglingConnections lists every connection that does not resolve.
// It never modifies the document.
func FindDanglingConnections(doc *Document) []DanglingConnection {
	out := []DanglingConnection{}
	for _, s := range Sections {
		present := make(map[int]bool)
		for _, c := range doc.Components(s) {
			present[c.ID] = true
		}
		for _, c := range doc.Components(s) {
			for slot, target := range c.Connections {
				if target != 0 && !present[target] {
					out = append(out, DanglingConnection{Section: s, ComponentID: c.ID, Slot: slot, Target: target})
				}
			}
		}
	}
	return out
}

// FindDuplicateIDs lists ids that appear more than once within a section.
func FindDuplicateIDs(doc *Document) []DuplicateID {
	out := []DuplicateID{}
	for _, s := range Sections {
		counts := make(map[int]int)
		for _, c := range doc.Components(s) {
			counts[c.ID]++
		}
		var dups []DuplicateID
		for id, n := range counts {
			if n > 1 {
				dups = append(dups, DuplicateID{Section: s, ID: id, Count: n})
			}
		}
		sort.Slice(dups, func(i, j int) bool { return dups[i].ID < dups[j].ID })
		out = append(out, dups...)
	}
	return out
}
