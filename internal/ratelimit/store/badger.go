// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/ratelimit"
)

const badgerMaxRetries = 16

// Badger keeps limiter state in an embedded badger database so limits
// survive restarts. Entry TTLs expire idle keys.
type Badger struct {
	db     *badger.DB
	logger zerolog.Logger
}

// OpenBadger opens (or creates) the database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string, logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", path, err)
	}
	logger.Info().
		Str("event", "store.opened").
		Str("backend", "badger").
		Str("path", path).
		Msg("opened badger limiter store")
	return &Badger{db: db, logger: logger}, nil
}

func (s *Badger) Backend() string { return BackendBadger }

func (s *Badger) Update(ctx context.Context, key string, ttl time.Duration, fn ratelimit.UpdateFunc) error {
	bkey := []byte("tat:" + key)
	for i := 0; i < badgerMaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			var (
				tat   int64
				found bool
			)
			item, err := txn.Get(bkey)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					if len(val) != 8 {
						return fmt.Errorf("corrupt state for %q: %d bytes", key, len(val))
					}
					tat = int64(binary.BigEndian.Uint64(val))
					return nil
				}); err != nil {
					return err
				}
				found = true
			}

			next, err := fn(tat, found)
			if err != nil {
				return err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(next))
			return txn.SetEntry(badger.NewEntry(bkey, buf).WithTTL(ttl))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %q", ErrTooMuchContention, key)
}

// Ping reports whether the database is still open.
func (s *Badger) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// Sweep runs value-log garbage collection. Expired keys are dropped by
// badger's compaction itself, so the count is always zero.
func (s *Badger) Sweep(context.Context) (int, error) {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		return 0, err
	}
	return 0, nil
}

func (s *Badger) Close() error {
	return s.db.Close()
}
