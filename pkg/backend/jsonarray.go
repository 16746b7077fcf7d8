package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// jsonArrayBackend implements spec.md §4.3 "JSON-array backend": the
// file is a JSON array of objects, and lookup is a linear scan for the
// first object whose keyname property equals keyvalue (coerced to
// integer if it parses as one, else compared as a string).
type jsonArrayBackend struct {
	m     *domain.Map
	cache *WorkerCache
}

func newJSONArrayBackend(m *domain.Map, cache *WorkerCache) (Backend, error) {
	return &jsonArrayBackend{m: m, cache: cache}, nil
}

type jsonArrayHandle struct {
	records []map[string]any
}

func (h *jsonArrayHandle) Close() error { return nil }

func (b *jsonArrayBackend) open() (*jsonArrayHandle, error) {
	h, err := b.cache.GetOrOpen(b.m.File, func() (io.Closer, error) {
		data, err := os.ReadFile(b.m.File)
		if err != nil {
			return nil, err
		}
		var records []map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("invalid json-array file %q: %w", b.m.File, err)
		}
		return &jsonArrayHandle{records: records}, nil
	})
	if err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "failed to open json-array backend", err)
	}
	return h.(*jsonArrayHandle), nil
}

func (b *jsonArrayBackend) Lookup(ctx context.Context, domainName, keyName, keyValue string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	h, err := b.open()
	if err != nil {
		return Result{}, err
	}

	var want any = keyValue
	if n, err := strconv.ParseInt(keyValue, 10, 64); err == nil {
		want = n
	}

	for _, record := range h.records {
		v, ok := record[keyName]
		if !ok {
			continue
		}
		if jsonValueEquals(v, want) {
			return Result{Object: record}, nil
		}
	}
	return Result{}, wnerrors.New(wnerrors.NotFound, "key not found")
}

func jsonValueEquals(recordValue, want any) bool {
	switch w := want.(type) {
	case int64:
		switch rv := recordValue.(type) {
		case float64:
			return int64(rv) == w && rv == float64(int64(rv))
		case string:
			n, err := strconv.ParseInt(rv, 10, 64)
			return err == nil && n == w
		}
		return false
	default:
		s, ok := recordValue.(string)
		if !ok {
			return false
		}
		return s == want
	}
}

func (b *jsonArrayBackend) Close() error {
	return nil
}
