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

// Package file provides a file-based implementation of the storage.Backend
// interface on an afero filesystem. Each key is one file below the root
// directory; writes go through a temporary file and a rename.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-rsacrypt/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// File permissions based on key suffix
	privateFilePerms = 0600 // owner rw only
	publicFilePerms  = 0644 // *.pub.pem, readable by others

	tempSuffix = ".tmp"
)

// FileStorage is a file-based implementation of storage.Backend.
type FileStorage struct {
	mu      sync.RWMutex
	fs      afero.Fs
	rootDir string
}

var _ storage.Backend = (*FileStorage)(nil)

// New creates a FileStorage on the operating system filesystem. The root
// directory is created with 0700 permissions if it doesn't exist.
func New(rootDir string) (*FileStorage, error) {
	return NewWithFs(afero.NewOsFs(), rootDir)
}

// NewWithFs creates a FileStorage on fsys.
func NewWithFs(fsys afero.Fs, rootDir string) (*FileStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}
	if err := fsys.MkdirAll(rootDir, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}
	return &FileStorage{fs: fsys, rootDir: filepath.Clean(rootDir)}, nil
}

// Root returns the root directory.
func (f *FileStorage) Root() string {
	return f.rootDir
}

func (f *FileStorage) Get(key string) ([]byte, error) {
	path, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read key %q: %w", key, err)
	}
	return data, nil
}

// Put writes value atomically. Permissions come from opts, or from the key:
// public key documents (*.pub.pem) are 0644, everything else 0600.
func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}

	tmp := path + tempSuffix
	if err := afero.WriteFile(f.fs, tmp, value, filePermissions(key, opts)); err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	return nil
}

func (f *FileStorage) Delete(key string) error {
	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.fs.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to stat key %q: %w", key, err)
	}
	if err := f.fs.Remove(path); err != nil {
		return fmt.Errorf("file storage: failed to delete key %q: %w", key, err)
	}
	return nil
}

// List returns keys with forward slashes, sorted. Leftover temporary files
// are skipped.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0)
	err := afero.Walk(f.fs, f.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, tempSuffix) {
			return nil
		}

		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	slices.Sort(keys)
	return keys, nil
}

func (f *FileStorage) Exists(key string) (bool, error) {
	path, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	ok, err := afero.Exists(f.fs, path)
	if err != nil {
		return false, fmt.Errorf("file storage: failed to check key %q: %w", key, err)
	}
	return ok, nil
}

// Close is a no-op.
func (f *FileStorage) Close() error {
	return nil
}

func (f *FileStorage) keyToPath(key string) (string, error) {
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrInvalidKey, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

// validateStorageKey allows nested keys like "keys/alice.pem" but blocks
// anything that resolves outside the root.
func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("key cannot be an absolute path")
	}
	if strings.HasSuffix(key, tempSuffix) {
		return fmt.Errorf("key cannot end in %s", tempSuffix)
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return fmt.Errorf("key contains path traversal attempt")
	}
	return nil
}

func filePermissions(key string, opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	if strings.HasSuffix(key, ".pub.pem") {
		return publicFilePerms
	}
	return privateFilePerms
}
