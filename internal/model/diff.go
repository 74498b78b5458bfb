package model

import (
	"fmt"
	"reflect"
	"time"
)

// ChangeType represents the kind of membership change detected.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// WindowChange represents a single change between two reads of the shared list.
type WindowChange struct {
	Type    ChangeType           `json:"type"`
	TS      int64                `json:"ts"`
	Window  *WindowRecord        `json:"window,omitempty"`  // For added: the full record
	ID      int                  `json:"id,omitempty"`      // For removed/changed: window ID
	Shape   *Shape               `json:"shape,omitempty"`   // For removed: last known shape
	Changes map[string][2]string `json:"changes,omitempty"` // For changed: field diffs
}

// DiffWindows compares two window lists and returns the changes.
// Records are matched by id. When a list carries duplicate ids (two windows
// that registered concurrently) the last occurrence wins.
func DiffWindows(prev, curr []WindowRecord) []WindowChange {
	return diffWindowsAt(prev, curr, time.Now())
}

func diffWindowsAt(prev, curr []WindowRecord, now time.Time) []WindowChange {
	prevMap := make(map[int]WindowRecord, len(prev))
	for _, w := range prev {
		prevMap[w.ID] = w
	}
	currMap := make(map[int]WindowRecord, len(curr))
	for _, w := range curr {
		currMap[w.ID] = w
	}

	var changes []WindowChange
	ts := now.Unix()
	reported := make(map[int]bool, len(curr))

	for _, w := range curr {
		if reported[w.ID] {
			continue
		}
		reported[w.ID] = true
		w = currMap[w.ID]

		prevW, existed := prevMap[w.ID]
		if !existed {
			wCopy := w
			changes = append(changes, WindowChange{
				Type:   ChangeAdded,
				TS:     ts,
				Window: &wCopy,
			})
			continue
		}
		if diffs := diffFields(prevW, w); len(diffs) > 0 {
			changes = append(changes, WindowChange{
				Type:    ChangeChanged,
				TS:      ts,
				ID:      w.ID,
				Changes: diffs,
			})
		}
	}

	removed := make(map[int]bool)
	for _, w := range prev {
		if _, exists := currMap[w.ID]; exists || removed[w.ID] {
			continue
		}
		removed[w.ID] = true
		shape := prevMap[w.ID].Shape
		changes = append(changes, WindowChange{
			Type:  ChangeRemoved,
			TS:    ts,
			ID:    w.ID,
			Shape: &shape,
		})
	}

	return changes
}

// diffFields compares two records with the same id and returns changed fields.
func diffFields(prev, curr WindowRecord) map[string][2]string {
	diffs := make(map[string][2]string)

	if prev.Shape != curr.Shape {
		diffs["shape"] = [2]string{prev.Shape.String(), curr.Shape.String()}
	}
	if !reflect.DeepEqual(normalizeMeta(prev.MetaData), normalizeMeta(curr.MetaData)) {
		diffs["metaData"] = [2]string{
			fmt.Sprintf("%v", prev.MetaData),
			fmt.Sprintf("%v", curr.MetaData),
		}
	}
	if prev.LastSeen != curr.LastSeen {
		diffs["lastSeen"] = [2]string{
			fmt.Sprintf("%d", prev.LastSeen),
			fmt.Sprintf("%d", curr.LastSeen),
		}
	}

	if len(diffs) == 0 {
		return nil
	}
	return diffs
}
