package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/store"
)

// EncodeWindows serializes the window list the way it is kept under the
// "windows" key. A nil list encodes as an empty array.
func EncodeWindows(windows []model.WindowRecord) ([]byte, error) {
	if windows == nil {
		windows = []model.WindowRecord{}
	}
	data, err := json.Marshal(windows)
	if err != nil {
		return nil, fmt.Errorf("encode windows: %w", err)
	}
	return data, nil
}

// DecodeWindows parses a stored window list. Absent, null or garbled values
// yield an empty list; ok is false only for garbled input.
func DecodeWindows(data []byte) (windows []model.WindowRecord, ok bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []model.WindowRecord{}, true
	}
	if err := json.Unmarshal(data, &windows); err != nil {
		return []model.WindowRecord{}, false
	}
	if windows == nil {
		windows = []model.WindowRecord{}
	}
	return windows, true
}

// EncodeCount serializes the id counter as a decimal string.
func EncodeCount(n int) []byte {
	return []byte(strconv.Itoa(n))
}

// DecodeCount parses the id counter. Absent or garbled values yield 0; ok is
// false only for garbled input.
func DecodeCount(data []byte) (n int, ok bool) {
	s := string(bytes.TrimSpace(data))
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ReadWindows reads and decodes the shared window list. A missing or garbled
// value is not an error.
func ReadWindows(ctx context.Context, st store.Store) ([]model.WindowRecord, error) {
	data, err := st.Read(ctx, store.KeyWindows)
	if err != nil && !store.IsNotFound(err) {
		return nil, fmt.Errorf("read %s: %w", store.KeyWindows, err)
	}
	windows, _ := DecodeWindows(data)
	return windows, nil
}

// ReadCount reads and decodes the shared id counter. A missing or garbled
// value reads as 0.
func ReadCount(ctx context.Context, st store.Store) (int, error) {
	data, err := st.Read(ctx, store.KeyCount)
	if err != nil && !store.IsNotFound(err) {
		return 0, fmt.Errorf("read %s: %w", store.KeyCount, err)
	}
	n, _ := DecodeCount(data)
	return n, nil
}
