package model

import (
	"fmt"
	"reflect"
	"strings"
)

// ChangeDetection selects how an incoming window list is compared against
// the local one when a sibling writes to the store.
type ChangeDetection string

const (
	// DetectPositional reports a change when lengths differ or the ids at any
	// index differ. Field-level edits (a sibling moving its window) with the
	// same id order are not reported.
	DetectPositional ChangeDetection = "positional"
	// DetectIDSet reports a change when the set of ids differs, ignoring order.
	DetectIDSet ChangeDetection = "idset"
	// DetectDeep reports a change when any record differs in any field.
	DetectDeep ChangeDetection = "deep"
)

// ParseChangeDetection converts a config or flag value to a ChangeDetection.
func ParseChangeDetection(s string) (ChangeDetection, error) {
	switch ChangeDetection(strings.ToLower(strings.TrimSpace(s))) {
	case "", DetectPositional:
		return DetectPositional, nil
	case DetectIDSet:
		return DetectIDSet, nil
	case DetectDeep:
		return DetectDeep, nil
	default:
		return DetectPositional, fmt.Errorf("unknown change detection mode: %q (expected positional, idset, or deep)", s)
	}
}

// Differ reports whether two window lists should be treated as different.
type Differ func(prev, next []WindowRecord) bool

// Differ returns the comparison function for the mode.
func (d ChangeDetection) Differ() Differ {
	switch d {
	case DetectIDSet:
		return IDSetsDiffer
	case DetectDeep:
		return DeepDiffer
	default:
		return WindowsDiffer
	}
}

// WindowsDiffer is the positional comparison: lengths, then ids index by index.
func WindowsDiffer(prev, next []WindowRecord) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if prev[i].ID != next[i].ID {
			return true
		}
	}
	return false
}

// IDSetsDiffer compares the lists as sets of ids.
func IDSetsDiffer(prev, next []WindowRecord) bool {
	if len(prev) != len(next) {
		return true
	}
	seen := make(map[int]int, len(prev))
	for _, w := range prev {
		seen[w.ID]++
	}
	for _, w := range next {
		if seen[w.ID] == 0 {
			return true
		}
		seen[w.ID]--
	}
	return false
}

// DeepDiffer compares every field of every record, in order.
func DeepDiffer(prev, next []WindowRecord) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		a, b := prev[i], next[i]
		if a.ID != b.ID || a.Shape != b.Shape || a.LastSeen != b.LastSeen {
			return true
		}
		if !reflect.DeepEqual(normalizeMeta(a.MetaData), normalizeMeta(b.MetaData)) {
			return true
		}
	}
	return false
}

// normalizeMeta treats nil and empty metadata as equal.
func normalizeMeta(m MetaData) MetaData {
	if len(m) == 0 {
		return nil
	}
	return m
}
