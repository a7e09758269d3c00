package editor

import (
	"encoding/json"
	"time"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

// Document is a persisted VRM file.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"-"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Position holds the canvas coordinates of a component.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ComponentDTO is the JSON form of a component exchanged with the editor UI.
type ComponentDTO struct {
	ID          int             `json:"id"`
	Type        string          `json:"type"`
	Section     string          `json:"section"`
	Position    Position        `json:"position"`
	Comment     *string         `json:"comment"`
	Watchpoint  *bool           `json:"watchpoint"`
	Connections []int           `json:"connections"`
	Values      json.RawMessage `json:"values,omitempty"`
	Extra       []string        `json:"extra,omitempty"`
}

// DocumentView is the read-only projection of an open document.
type DocumentView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Version   int64          `json:"version"`
	Pre       []ComponentDTO `json:"pre"`
	Post      []ComponentDTO `json:"post"`
	HTML      string         `json:"html"`
	Script    *string        `json:"script"`
	Warnings  []vrm.Warning  `json:"warnings"`
	State     string         `json:"state"`
	Dirty     bool           `json:"dirty"`
	LastError string         `json:"lastError,omitempty"`
}

// Diagnostics lists the validation findings of a document.
type Diagnostics struct {
	Dangling   []vrm.DanglingConnection `json:"dangling" yaml:"dangling"`
	Duplicates []vrm.DuplicateID        `json:"duplicates" yaml:"duplicates"`
	Warnings   []vrm.Warning            `json:"warnings" yaml:"warnings"`
}

// CreateDocumentRequest is the JSON body for uploading a document.
type CreateDocumentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CreateDocumentResponse describes a stored document and its parse warnings.
type CreateDocumentResponse struct {
	Document
	Warnings []vrm.Warning `json:"warnings"`
}

// AddComponentRequest adds one component; AllocateID replaces the given id
// with a fresh one.
type AddComponentRequest struct {
	Component  ComponentDTO `json:"component"`
	AllocateID bool         `json:"allocateId"`
}

// UpdateComponentsRequest carries a batch of full component records.
type UpdateComponentsRequest struct {
	Components []ComponentDTO `json:"components"`
}

// ContentRequest replaces the text of a content block.
type ContentRequest struct {
	Text string `json:"text"`
}

// ExportResponse is the fully regenerated document text.
type ExportResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// FlushResponse reports the stored version after a synchronous commit.
type FlushResponse struct {
	Version int64  `json:"version"`
	State   string `json:"state"`
}
