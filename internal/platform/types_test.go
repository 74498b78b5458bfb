package platform

import (
	"testing"

	"github.com/mj1618/winsync/internal/model"
)

func TestParseShape_Valid(t *testing.T) {
	s, err := ParseShape("10,20,300,400")
	if err != nil {
		t.Fatal(err)
	}
	if s != (model.Shape{X: 10, Y: 20, W: 300, H: 400}) {
		t.Errorf("got %+v, want {10 20 300 400}", s)
	}
}

func TestParseShape_WithSpaces(t *testing.T) {
	s, err := ParseShape("-10, 20, 300, 400")
	if err != nil {
		t.Fatal(err)
	}
	if s != (model.Shape{X: -10, Y: 20, W: 300, H: 400}) {
		t.Errorf("got %+v, want {-10 20 300 400}", s)
	}
}

func TestParseShape_Invalid(t *testing.T) {
	tests := []string{
		"",
		"10,20,300",
		"10,20,300,400,500",
		"a,b,c,d",
		"10,20,abc,400",
		"10,20,-1,400",
	}
	for _, s := range tests {
		if _, err := ParseShape(s); err == nil {
			t.Errorf("ParseShape(%q) should fail", s)
		}
	}
}

func TestParseMeta(t *testing.T) {
	meta, err := ParseMeta([]string{"foo=bar", "n=3", "ratio=0.5", "on=true", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		key  string
		want any
	}{
		{"foo", "bar"},
		{"n", int64(3)},
		{"ratio", 0.5},
		{"on", true},
		{"empty", ""},
	}
	for _, tt := range tests {
		if got := meta[tt.key]; got != tt.want {
			t.Errorf("meta[%q] = %#v, want %#v", tt.key, got, tt.want)
		}
	}
}

func TestParseMeta_Invalid(t *testing.T) {
	for _, in := range []string{"novalue", "=x"} {
		if _, err := ParseMeta([]string{in}); err == nil {
			t.Errorf("ParseMeta(%q) should fail", in)
		}
	}
}

func TestParseMeta_Empty(t *testing.T) {
	meta, err := ParseMeta(nil)
	if err != nil {
		t.Fatal(err)
	}
	if meta == nil || len(meta) != 0 {
		t.Errorf("expected empty non-nil metadata, got %#v", meta)
	}
}
