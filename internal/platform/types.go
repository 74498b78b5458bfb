package platform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mj1618/winsync/internal/model"
)

// ParseShape parses a "x,y,w,h" string into a Shape.
func ParseShape(s string) (model.Shape, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.Shape{}, fmt.Errorf("invalid shape %q: expected x,y,w,h", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return model.Shape{}, fmt.Errorf("invalid shape %q: %w", s, err)
		}
		vals[i] = v
	}
	if vals[2] < 0 || vals[3] < 0 {
		return model.Shape{}, fmt.Errorf("invalid shape %q: width and height must be non-negative", s)
	}
	return model.Shape{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// ParseMeta converts "key=value" pairs into MetaData. Values that parse as
// integers, floats or booleans keep that type; everything else is a string.
func ParseMeta(pairs []string) (model.MetaData, error) {
	meta := model.MetaData{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		meta[key] = parseScalar(strings.TrimSpace(value))
	}
	return meta, nil
}

func parseScalar(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
