// Package badger is an embedded alternative to the JSON journal file: one key
// per entry, so a crash mid-write can no longer take the whole table down.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/MrSnakeDoc/together/internal/domain"
)

const entryPrefix = "entry/"

type Options struct {
	// Path is the database directory. Empty opens an in-memory database.
	Path string
}

type JournalDB struct {
	db *badger.DB
}

func Open(opts Options) (*JournalDB, error) {
	var bopts badger.Options
	if opts.Path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, domain.IOError("create badger directory", err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &JournalDB{db: db}, nil
}

func (j *JournalDB) Close() error { return j.db.Close() }

func (j *JournalDB) Name() string { return "badger" }

func (j *JournalDB) Ping(context.Context) error {
	if j.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func key(id string) []byte { return []byte(entryPrefix + id) }

func (j *JournalDB) List(context.Context) ([]domain.Entry, error) {
	entries := []domain.Entry{}
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e domain.Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, domain.IOError("list badger entries", err)
	}
	return entries, nil
}

func (j *JournalDB) Get(_ context.Context, id string) (domain.Entry, error) {
	var e domain.Entry
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &e) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Entry{}, domain.IOError("get badger entry", err)
	}
	return e, nil
}

func (j *JournalDB) Insert(_ context.Context, e domain.Entry) error {
	return j.put(e, false)
}

func (j *JournalDB) Replace(_ context.Context, e domain.Entry) error {
	return j.put(e, true)
}

// put writes e. mustExist selects Replace semantics, otherwise the id must
// be new.
func (j *JournalDB) put(e domain.Entry, mustExist bool) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key(e.ID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if mustExist {
				return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
			}
		case err != nil:
			return err
		case !mustExist:
			return fmt.Errorf("entry %s already exists", e.ID)
		}
		return txn.Set(key(e.ID), data)
	})
	if err != nil && !domain.IsNotFound(err) {
		return domain.IOError("write badger entry", err)
	}
	return err
}

func (j *JournalDB) Delete(_ context.Context, id string) error {
	err := j.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.IOError("delete badger entry", err)
	}
	return nil
}
