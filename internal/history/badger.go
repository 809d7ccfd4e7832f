package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/straja-ai/adaware/internal/logger"
)

// Key layout:
//
//	a/<id>                 record JSON
//	t/<inverted nanos>/<id> newest-first index, value is the id
//	f/<id>                 feedback JSON
var (
	recordPrefix   = []byte("a/")
	timePrefix     = []byte("t/")
	feedbackPrefix = []byte("f/")
)

const badgerGCInterval = 10 * time.Minute

// BadgerStore is an embedded, single-process history store.
type BadgerStore struct {
	db       *badger.DB
	stop     chan struct{}
	wg       sync.WaitGroup
	closeErr error
	once     sync.Once
}

// OpenBadger opens (or creates) a store under dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: create %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(logger.Log.WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open badger: %w", err)
	}
	s := &BadgerStore{db: db, stop: make(chan struct{})}
	if dir != "" {
		s.wg.Add(1)
		go s.gcLoop()
	}
	return s, nil
}

func (s *BadgerStore) gcLoop() {
	defer s.wg.Done()
	t := time.NewTicker(badgerGCInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			// each successful pass may leave more to rewrite
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

func recordKey(id string) []byte   { return append(append([]byte(nil), recordPrefix...), id...) }
func feedbackKey(id string) []byte { return append(append([]byte(nil), feedbackPrefix...), id...) }

func timeKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", timePrefix, math.MaxInt64-ts.UnixNano(), id))
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error { return json.Unmarshal(val, v) })
}

// Save keeps the first timestamp of an id so re-saves do not reorder List,
// matching the Postgres store.
func (s *BadgerStore) Save(_ context.Context, rec Record) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var prev Record
		switch err := getJSON(txn, recordKey(rec.ID), &prev); {
		case err == nil:
			rec.Timestamp = prev.Timestamp
		case errors.Is(err, ErrNotFound):
			if err := txn.Set(timeKey(rec.Timestamp, rec.ID), []byte(rec.ID)); err != nil {
				return err
			}
		default:
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(recordKey(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("history: save %s: %w", rec.ID, err)
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, recordKey(id), &rec) })
	if errors.Is(err, ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return rec, nil
}

func (s *BadgerStore) List(ctx context.Context, limit int) ([]Record, error) {
	limit = clampLimit(limit)
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = timePrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(timePrefix); it.ValidForPrefix(timePrefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := getJSON(txn, recordKey(string(id)), &rec); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) SaveFeedback(_ context.Context, fb Feedback) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(fb.AnalysisID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		data, err := json.Marshal(fb)
		if err != nil {
			return err
		}
		return txn.Set(feedbackKey(fb.AnalysisID), data)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("history: save feedback %s: %w", fb.AnalysisID, err)
	}
	return nil
}

func (s *BadgerStore) Stats(_ context.Context) (Stats, error) {
	st := Stats{ByLabel: map[string]int{}}
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanPrefix(txn, recordPrefix, func(val []byte) error {
			var rec struct {
				FinalLabel string `json:"final_label"`
			}
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			st.Total++
			st.ByLabel[rec.FinalLabel]++
			return nil
		}); err != nil {
			return err
		}
		return scanPrefix(txn, feedbackPrefix, func(val []byte) error {
			var fb Feedback
			if err := json.Unmarshal(val, &fb); err != nil {
				return err
			}
			st.Feedback++
			if fb.IsCorrect {
				st.Correct++
			} else {
				st.Incorrect++
			}
			return nil
		})
	})
	if err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	st.Accuracy = accuracy(st.Correct, st.Feedback)
	return st, nil
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
