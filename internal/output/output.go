package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mj1618/winsync/internal/model"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// Stdout is where Print writes. Tests swap it for a buffer.
var Stdout io.Writer = os.Stdout

// ListResult is the output of the `list` command.
type ListResult struct {
	TS      int64                `yaml:"ts"      json:"ts"`
	Count   int                  `yaml:"count"   json:"count"`
	Windows []model.WindowRecord `yaml:"windows" json:"windows"`
}

// ReapResult is the output of the `reap` command.
type ReapResult struct {
	TS      int64 `yaml:"ts"      json:"ts"`
	Removed []int `yaml:"removed" json:"removed"`
}

// Event names emitted by `join`.
const (
	EventJoined         = "joined"
	EventShapeChanged   = "shape_changed"
	EventWindowsChanged = "windows_changed"
	EventReaped         = "reaped"
	EventLeft           = "left"
)

// JoinEvent is one line of the `join` event stream.
type JoinEvent struct {
	Event    string               `json:"event"`
	TS       int64                `json:"ts"`
	WindowID int                  `json:"windowId"`
	Shape    *model.Shape         `json:"shape,omitempty"`
	Windows  []model.WindowRecord `json:"windows,omitempty"`
	Removed  []int                `json:"removed,omitempty"`
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Print serializes v to Stdout in the current output format.
func Print(v interface{}) error {
	return Fprint(Stdout, v)
}

// Fprint serializes v to w in the current output format.
func Fprint(w io.Writer, v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		return WriteJSON(w, v, PrettyOutput)
	case FormatYAML:
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}
