package vrm

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID     = errors.New("duplicate component id")
	ErrNotFound        = errors.New("component not found")
	ErrValuesMismatch  = errors.New("values do not match component type")
	ErrInvalidSection  = errors.New("invalid section")
	ErrUnknownContent  = errors.New("unknown content block")
	ErrCommitFailed    = errors.New("commit failed")
	ErrCoordinatorDone = errors.New("coordinator closed")
)

// StructuralParseError reports a required top-level block that could not be located.
// It is the only fatal load error.
type StructuralParseError struct {
	Block  string
	Reason string
}

func (e *StructuralParseError) Error() string {
	return fmt.Sprintf("vrm: block <%s> %s", e.Block, e.Reason)
}

// WarningKind classifies non-fatal parse issues.
type WarningKind string

const (
	KindComponent WarningKind = "component"
	KindValue     WarningKind = "value"
)

// Warning is a parse issue collected alongside the document.
type Warning struct {
	Kind        WarningKind `json:"kind" yaml:"kind"`
	Section     Section     `json:"section,omitempty" yaml:"section,omitempty"`
	ComponentID int         `json:"componentId,omitempty" yaml:"component_id,omitempty"`
	Offset      int         `json:"offset" yaml:"offset"`
	Message     string      `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	if w.ComponentID != 0 {
		return fmt.Sprintf("%s warning in %s component %d at %d: %s", w.Kind, w.Section, w.ComponentID, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s warning in %s at %d: %s", w.Kind, w.Section, w.Offset, w.Message)
}

// ComponentParseWarning is returned by ParseComponent when a span cannot be decoded.
// The component is skipped; loading continues.
type ComponentParseWarning struct {
	Section     Section
	ComponentID int
	Reason      string
}

func (e *ComponentParseWarning) Error() string {
	if e.ComponentID != 0 {
		return fmt.Sprintf("component %d: %s", e.ComponentID, e.Reason)
	}
	return "component: " + e.Reason
}

func (e *ComponentParseWarning) warning(offset int) Warning {
	return Warning{Kind: KindComponent, Section: e.Section, ComponentID: e.ComponentID, Offset: offset, Message: e.Reason}
}

// CommitError is surfaced once the coordinator has exhausted its retries.
type CommitError struct {
	Attempts int
	Err      error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{ErrCommitFailed, e.Err} }
