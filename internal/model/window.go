package model

import "fmt"

// Shape is a window's screen position and size in pixels.
type Shape struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Center returns the midpoint of the shape.
func (s Shape) Center() (int, int) {
	return s.X + s.W/2, s.Y + s.H/2
}

func (s Shape) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", s.X, s.Y, s.W, s.H)
}

// MetaData is the opaque payload a host attaches to its window at registration.
type MetaData map[string]any

// WindowRecord is one participant window in the shared list.
type WindowRecord struct {
	ID       int      `json:"id"                 yaml:"id"`
	Shape    Shape    `json:"shape"              yaml:"shape"`
	MetaData MetaData `json:"metaData"           yaml:"metaData"`
	LastSeen int64    `json:"lastSeen,omitempty" yaml:"lastSeen,omitempty"` // unix millis, heartbeat only
}

// IndexByID returns the position of the record with the given id, or -1.
func IndexByID(windows []WindowRecord, id int) int {
	for i := range windows {
		if windows[i].ID == id {
			return i
		}
	}
	return -1
}

// CloneWindows returns a copy of windows that shares no slice backing array.
// MetaData maps are shared; they are never mutated after registration.
func CloneWindows(windows []WindowRecord) []WindowRecord {
	if windows == nil {
		return []WindowRecord{}
	}
	out := make([]WindowRecord, len(windows))
	copy(out, windows)
	return out
}
