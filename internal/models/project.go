// Package models defines the domain types for pagesmith.
package models

import "time"

// Slot names a logical artifact within a project.
type Slot string

const (
	// SlotPage is the HTML document every project has.
	SlotPage Slot = "page"
	// SlotServer is the server-side script of multi-artifact projects.
	SlotServer Slot = "server"
)

// FileName returns the on-disk file name for the slot.
func (s Slot) FileName() string {
	switch s {
	case SlotServer:
		return "app.py"
	default:
		return "index.html"
	}
}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	return s == SlotPage || s == SlotServer
}

// Artifacts maps a slot to its text content.
type Artifacts map[Slot]string

// Empty reports whether no slot carries any content.
func (a Artifacts) Empty() bool {
	for _, v := range a {
		if v != "" {
			return false
		}
	}
	return true
}

// Project is a named unit of generated content.
type Project struct {
	Name      string    `json:"name"`
	Slots     []Slot    `json:"slots"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileInfo is a lightweight file description returned by storage listings.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
