// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-rsacrypt.
//
// go-rsacrypt is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package memory provides an in-memory implementation of the storage.Backend
// interface. Values are copied on the way in and out.
package memory

import (
	"slices"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-rsacrypt/pkg/storage"
)

// Storage is an in-memory implementation of storage.Backend.
type Storage struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ storage.Backend = (*Storage)(nil)

// New creates a new in-memory storage backend.
func New() *Storage {
	return &Storage{
		data: make(map[string][]byte),
	}
}

func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	value, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(value), nil
}

// Put stores a copy of value. opts is ignored.
func (s *Storage) Put(key string, value []byte, opts *storage.Options) error {
	if key == "" {
		return storage.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if _, ok := s.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, storage.ErrClosed
	}
	_, ok := s.data[key]
	return ok, nil
}

// Close drops all data. Later calls return storage.ErrClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}
