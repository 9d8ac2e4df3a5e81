// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/json"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
)

// Store wraps a luxfi database for marketplace snapshots.
type Store struct {
	db database.Database
}

// New opens a store. dbType "memory" keeps everything in RAM; "badger"
// persists under path.
func New(dbType string, path string) (*Store, error) {
	var db database.Database
	var err error

	switch dbType {
	case "memory":
		db = memdb.New()
	default:
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

// NewMemory opens an in-memory store.
func NewMemory() *Store {
	return &Store{db: memdb.New()}
}

// Put stores a key-value pair.
func (s *Store) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

// Get retrieves a value by key.
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}

// Has checks whether a key exists.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

// Delete removes a key.
func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key)
}

// PutJSON marshals v under key.
func (s *Store) PutJSON(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw)
}

// GetJSON unmarshals the value under key into v.
func (s *Store) GetJSON(key []byte, v any) error {
	raw, err := s.db.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// NewIteratorWithPrefix iterates keys under a prefix.
func (s *Store) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return s.db.NewIteratorWithPrefix(prefix)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
