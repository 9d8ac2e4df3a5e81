// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreBasicOps(t *testing.T) {
	require := require.New(t)
	s := NewMemory()
	defer s.Close()

	ok, err := s.Has([]byte("k"))
	require.NoError(err)
	require.False(ok)

	require.NoError(s.Put([]byte("k"), []byte("v")))
	got, err := s.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), got)

	ok, err = s.Has([]byte("k"))
	require.NoError(err)
	require.True(ok)

	require.NoError(s.Delete([]byte("k")))
	ok, err = s.Has([]byte("k"))
	require.NoError(err)
	require.False(ok)
}

func TestStoreJSON(t *testing.T) {
	require := require.New(t)
	s := NewMemory()
	defer s.Close()

	type rec struct {
		ID    uint64 `json:"id"`
		Label string `json:"label"`
	}

	require.NoError(s.PutJSON([]byte("r/1"), rec{ID: 1, Label: "banner"}))
	var got rec
	require.NoError(s.GetJSON([]byte("r/1"), &got))
	require.Equal(rec{ID: 1, Label: "banner"}, got)
}

func TestStorePrefixIteration(t *testing.T) {
	require := require.New(t)
	s := NewMemory()
	defer s.Close()

	require.NoError(s.Put([]byte("a/1"), []byte("x")))
	require.NoError(s.Put([]byte("a/2"), []byte("y")))
	require.NoError(s.Put([]byte("b/1"), []byte("z")))

	it := s.NewIteratorWithPrefix([]byte("a/"))
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(it.Error())
	require.ElementsMatch([]string{"a/1", "a/2"}, keys)
}

func TestBadgerBackend(t *testing.T) {
	require := require.New(t)
	s, err := New("badger", t.TempDir())
	require.NoError(err)
	defer s.Close()

	require.NoError(s.Put([]byte("k"), []byte("v")))
	got, err := s.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), got)
}
