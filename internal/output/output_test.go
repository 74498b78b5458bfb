package output

import (
	"bytes"
	"testing"

	"github.com/mj1618/winsync/internal/model"
	"gopkg.in/yaml.v3"
)

func sampleList() ListResult {
	return ListResult{
		TS:    1707500000,
		Count: 2,
		Windows: []model.WindowRecord{
			{ID: 1, Shape: model.Shape{X: 0, Y: 0, W: 800, H: 600}, MetaData: model.MetaData{"foo": "bar"}},
			{ID: 2, Shape: model.Shape{X: 900, Y: 0, W: 800, H: 600}, MetaData: model.MetaData{}},
		},
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, sampleList()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if bytes.Count([]byte(out), []byte("\n")) <= 1 {
		t.Errorf("YAML output should be multi-line, got:\n%s", out)
	}

	var decoded ListResult
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(decoded.Windows) != 2 {
		t.Fatalf("windows: got %d, want 2", len(decoded.Windows))
	}
	if decoded.Windows[1].Shape.X != 900 {
		t.Errorf("shape.x: got %d, want 900", decoded.Windows[1].Shape.X)
	}
	if decoded.Windows[0].MetaData["foo"] != "bar" {
		t.Errorf("metaData.foo: got %v", decoded.Windows[0].MetaData["foo"])
	}
}

func TestWriteYAML_KeyNames(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, sampleList().Windows[0]); err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "shape", "metaData"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in:\n%s", key, buf.String())
		}
	}
	if _, ok := m["lastSeen"]; ok {
		t.Error("zero lastSeen should be omitted")
	}
}

func TestFprint_FollowsFormat(t *testing.T) {
	defer func(f Format, p bool) { OutputFormat, PrettyOutput = f, p }(OutputFormat, PrettyOutput)

	tests := []struct {
		format    Format
		pretty    bool
		wantLines int
	}{
		{FormatJSON, false, 1},
		{FormatYAML, false, -1},
	}
	for _, tt := range tests {
		OutputFormat, PrettyOutput = tt.format, tt.pretty
		var buf bytes.Buffer
		if err := Fprint(&buf, ReapResult{TS: 1, Removed: []int{3}}); err != nil {
			t.Fatalf("%s: %v", tt.format, err)
		}
		lines := bytes.Count(buf.Bytes(), []byte("\n"))
		if tt.wantLines > 0 && lines != tt.wantLines {
			t.Errorf("%s: got %d lines, want %d", tt.format, lines, tt.wantLines)
		}
		if tt.wantLines < 0 && lines < 2 {
			t.Errorf("%s: expected multi-line output, got %q", tt.format, buf.String())
		}
	}

	OutputFormat = "xml"
	if err := Fprint(&bytes.Buffer{}, 1); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"yaml", "json"} {
		if _, err := ParseFormat(ok); err != nil {
			t.Errorf("ParseFormat(%q): %v", ok, err)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("expected error for toml")
	}
}
