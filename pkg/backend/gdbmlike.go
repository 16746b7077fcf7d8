package backend

import (
	"context"
	"io"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// gdbmLikeBackend is the keyed-hash backend (spec.md §4.3 "Keyed-hash
// backend"): a file-backed, single-writer/multi-reader key→value-line
// store. Badger's embedded LSM-tree KV engine stands in for the
// GDBM-compatible hash file named in the spec -- same O(1) expected
// lookup contract, same "directory of on-disk pages" persistence model.
type gdbmLikeBackend struct {
	m     *domain.Map
	cache *WorkerCache
}

func newGDBMLikeBackend(m *domain.Map, cache *WorkerCache) (Backend, error) {
	return &gdbmLikeBackend{m: m, cache: cache}, nil
}

func (b *gdbmLikeBackend) open() (*badger.DB, error) {
	h, err := b.cache.GetOrOpen(b.m.File, func() (io.Closer, error) {
		opts := badger.DefaultOptions(b.m.File).WithLogger(nil)
		return badger.Open(opts)
	})
	if err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "failed to open keyed-hash backend", err)
	}
	return h.(*badger.DB), nil
}

func (b *gdbmLikeBackend) Lookup(ctx context.Context, domainName, keyName, keyValue string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	db, err := b.open()
	if err != nil {
		return Result{}, err
	}

	var line string
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyValue))
		if err == badger.ErrKeyNotFound {
			return wnerrors.New(wnerrors.NotFound, "key not found")
		}
		if err != nil {
			return wnerrors.Wrap(wnerrors.Unavailable, "keyed-hash read failed", err)
		}
		return item.Value(func(val []byte) error {
			line = string(val)
			return nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Line: line}, nil
}

func (b *gdbmLikeBackend) Close() error {
	return nil
}
