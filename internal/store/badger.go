package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDocuments stores documents in an embedded Badger database.
type BadgerDocuments struct {
	DB *badger.DB
}

// OpenBadger opens a Badger database at dir. An empty dir opens an in-memory
// database.
func OpenBadger(dir string) (*BadgerDocuments, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &BadgerDocuments{DB: db}, nil
}

// Close closes the underlying database.
func (b *BadgerDocuments) Close() error {
	return b.DB.Close()
}

// Get returns the document stored under key.
func (b *BadgerDocuments) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", key, err)
	}
	return value, nil
}

// Put writes the given documents in one transaction.
func (b *BadgerDocuments) Put(_ context.Context, docs ...Document) error {
	err := b.DB.Update(func(txn *badger.Txn) error {
		for _, d := range docs {
			if err := txn.Set([]byte(d.Key), d.Value); err != nil {
				return fmt.Errorf("writing document %s: %w", d.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

// Delete removes the document stored under key.
func (b *BadgerDocuments) Delete(_ context.Context, key string) error {
	err := b.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}
