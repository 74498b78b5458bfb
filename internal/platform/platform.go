package platform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mj1618/winsync/internal/model"
)

// ShapeSource reports the current screen position and size of this process's
// window. It is queried on demand and must not cache.
type ShapeSource interface {
	CurrentShape() (model.Shape, error)
}

// ShapeSourceFunc adapts a function to ShapeSource.
type ShapeSourceFunc func() (model.Shape, error)

func (f ShapeSourceFunc) CurrentShape() (model.Shape, error) { return f() }

// FixedSource is a ShapeSource whose geometry is set explicitly, by a host
// that learns about moves from somewhere else (stdin, tests). It is safe for
// concurrent use.
type FixedSource struct {
	mu    sync.Mutex
	shape model.Shape
}

// NewFixedSource returns a source reporting shape until Set is called.
func NewFixedSource(shape model.Shape) *FixedSource {
	return &FixedSource{shape: shape}
}

func (s *FixedSource) CurrentShape() (model.Shape, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape, nil
}

// Set replaces the reported geometry.
func (s *FixedSource) Set(shape model.Shape) {
	s.mu.Lock()
	s.shape = shape
	s.mu.Unlock()
}

// FeedShapes reads "x,y,w,h" lines from r and applies each to dst until EOF
// or ctx is done. Blank lines and lines starting with '#' are skipped.
// Malformed lines are reported to onBad (if set) and otherwise ignored.
func FeedShapes(ctx context.Context, r io.Reader, dst *FixedSource, onBad func(line string, err error)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		shape, err := ParseShape(line)
		if err != nil {
			if onBad != nil {
				onBad(line, err)
			}
			continue
		}
		dst.Set(shape)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read shapes: %w", err)
	}
	return nil
}
