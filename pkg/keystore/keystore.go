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

// Package keystore keeps named RSA keys as PEM documents in a
// storage.Backend.
//
// A key named "alice" is stored as two entries: "alice.pem" holding the
// private key (PKCS#1, or encrypted PKCS#8 when saved with a password) and
// "alice.pub.pem" holding the public key. Public-only keys have just the
// second entry.
package keystore

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
	"github.com/jeremyhahn/go-rsacrypt/pkg/pem"
	"github.com/jeremyhahn/go-rsacrypt/pkg/rsacrypt"
	"github.com/jeremyhahn/go-rsacrypt/pkg/storage"
)

const (
	privateSuffix = ".pem"
	publicSuffix  = ".pub.pem"
)

var (
	ErrKeyNotFound      = errors.New("keystore: key not found")
	ErrKeyAlreadyExists = errors.New("keystore: key already exists")
	ErrInvalidKeyName   = errors.New("keystore: invalid key name")
	ErrPasswordRequired = errors.New("keystore: key is encrypted, password required")
	ErrNoPrivateKey     = errors.New("keystore: key has no private part")
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateName reports whether name can be used as a key name.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) || name == "." || name == ".." || strings.HasSuffix(name, ".pub") {
		return fmt.Errorf("%w: %q", ErrInvalidKeyName, name)
	}
	return nil
}

// NewName returns a random key name.
func NewName() string {
	return uuid.NewString()
}

// Config contains configuration for a Store.
type Config struct {
	// Backend holds the PEM documents. Required.
	Backend storage.Backend

	// Name labels the store in metrics, e.g. "file".
	Name string

	Logger *logging.Logger
}

// Validate checks if the Config is valid and fills in defaults.
func (c *Config) Validate() error {
	if c == nil || c.Backend == nil {
		return errors.New("keystore: storage backend is required")
	}
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}
	return nil
}

// Entry describes one stored key.
type Entry struct {
	Name       string `json:"name" yaml:"name"`
	HasPrivate bool   `json:"has_private" yaml:"has_private"`
	Encrypted  bool   `json:"encrypted" yaml:"encrypted"`
}

// Store is a named key store. It is safe for concurrent use.
type Store struct {
	config *Config
	mu     sync.Mutex
}

// New creates a Store.
func New(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Store{config: config}, nil
}

// Save stores key and its public key under name. A non-empty password
// encrypts the private key at rest.
func (s *Store) Save(name string, key *rsacrypt.PrivateKey, password []byte, overwrite bool) (err error) {
	defer s.observe(metrics.OpStore)(&err)
	if err := ValidateName(name); err != nil {
		return err
	}

	var privPEM string
	if len(password) > 0 {
		privPEM, err = key.EncryptedPKCS8PEM(password)
	} else {
		privPEM, err = key.PEM()
	}
	if err != nil {
		return err
	}

	pub, err := key.PublicKey()
	if err != nil {
		return err
	}
	defer pub.Close()
	pubPEM, err := pub.PEM()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFree(name, overwrite); err != nil {
		return err
	}
	if err := s.config.Backend.Put(name+privateSuffix, []byte(privPEM), storage.DefaultOptions()); err != nil {
		return err
	}
	if err := s.config.Backend.Put(name+publicSuffix, []byte(pubPEM), &storage.Options{Permissions: 0644}); err != nil {
		// A private entry without its public entry is invisible to checkFree.
		if derr := s.config.Backend.Delete(name + privateSuffix); derr != nil {
			s.config.Logger.MaybeError(derr)
		}
		return err
	}

	s.config.Logger.Debugf("keystore: saved key %s (%d bits, encrypted=%t)", name, key.KeySizeInBits(), len(password) > 0)
	s.updateGauge()
	return nil
}

// SavePublic stores a public-only key under name.
func (s *Store) SavePublic(name string, key *rsacrypt.PublicKey, overwrite bool) (err error) {
	defer s.observe(metrics.OpStore)(&err)
	if err := ValidateName(name); err != nil {
		return err
	}
	pubPEM, err := key.PEM()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFree(name, overwrite); err != nil {
		return err
	}
	if overwrite {
		// Drop a private part left over from a previous key of this name.
		if err := s.config.Backend.Delete(name + privateSuffix); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if err := s.config.Backend.Put(name+publicSuffix, []byte(pubPEM), &storage.Options{Permissions: 0644}); err != nil {
		return err
	}

	s.config.Logger.Debugf("keystore: saved public key %s", name)
	s.updateGauge()
	return nil
}

func (s *Store) checkFree(name string, overwrite bool) error {
	if overwrite {
		return nil
	}
	ok, err := s.config.Backend.Exists(name + publicSuffix)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrKeyAlreadyExists, name)
	}
	return nil
}

// Load returns the private key stored under name. password is required
// only for encrypted keys.
func (s *Store) Load(name string, password []byte) (key *rsacrypt.PrivateKey, err error) {
	defer s.observe(metrics.OpLoad)(&err)

	text, err := s.get(name, privateSuffix)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) && s.exists(name+publicSuffix) {
			return nil, fmt.Errorf("%w: %s", ErrNoPrivateKey, name)
		}
		return nil, err
	}

	if isEncrypted(text) {
		if len(password) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrPasswordRequired, name)
		}
		return rsacrypt.NewPrivateKeyFromEncryptedPEM(text, password)
	}
	return rsacrypt.NewPrivateKeyFromPEM(text)
}

// LoadPublic returns the public key stored under name.
func (s *Store) LoadPublic(name string) (key *rsacrypt.PublicKey, err error) {
	defer s.observe(metrics.OpLoad)(&err)

	text, err := s.get(name, publicSuffix)
	if err != nil {
		return nil, err
	}
	return rsacrypt.NewPublicKeyFromPEM(text)
}

func (s *Store) get(name, suffix string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := s.config.Backend.Get(name + suffix)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		return "", err
	}
	return string(data), nil
}

func (s *Store) exists(key string) bool {
	ok, err := s.config.Backend.Exists(key)
	return err == nil && ok
}

// List returns the stored keys sorted by name.
func (s *Store) List() (entries []Entry, err error) {
	defer s.observe(metrics.OpList)(&err)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Store) list() ([]Entry, error) {
	keys, err := s.config.Backend.List("")
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Entry)
	entry := func(name string) *Entry {
		e, ok := byName[name]
		if !ok {
			e = &Entry{Name: name}
			byName[name] = e
		}
		return e
	}
	for _, key := range keys {
		switch {
		case strings.HasSuffix(key, publicSuffix):
			entry(strings.TrimSuffix(key, publicSuffix))
		case strings.HasSuffix(key, privateSuffix):
			e := entry(strings.TrimSuffix(key, privateSuffix))
			e.HasPrivate = true
			if data, err := s.config.Backend.Get(key); err == nil {
				e.Encrypted = isEncrypted(string(data))
			}
		}
	}

	entries := make([]Entry, 0, len(byName))
	for _, e := range byName {
		if ValidateName(e.Name) == nil {
			entries = append(entries, *e)
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Delete removes both parts of the key stored under name.
func (s *Store) Delete(name string) (err error) {
	defer s.observe(metrics.OpDelete)(&err)
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, suffix := range []string{privateSuffix, publicSuffix} {
		err := s.config.Backend.Delete(name + suffix)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}

	s.config.Logger.Debugf("keystore: deleted key %s", name)
	s.updateGauge()
	return nil
}

// updateGauge refreshes the key count metric. Callers hold s.mu.
func (s *Store) updateGauge() {
	entries, err := s.list()
	if err != nil {
		s.config.Logger.MaybeError(err)
		return
	}
	metrics.SetKeysTotal(s.config.Name, float64(len(entries)))
}

func (s *Store) observe(op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		status := metrics.StatusSuccess
		if *errp != nil {
			status = metrics.StatusError
			metrics.RecordError(op, rsacrypt.EngineName(), errorType(*errp))
		}
		metrics.RecordOperation(op, rsacrypt.EngineName(), status, time.Since(start).Seconds())
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrKeyAlreadyExists):
		return "key_already_exists"
	case errors.Is(err, ErrInvalidKeyName):
		return "invalid_key_name"
	case errors.Is(err, ErrPasswordRequired), errors.Is(err, backend.ErrInvalidPassword):
		return "invalid_password"
	}
	if code, ok := backend.CryptoErrorCode(err); ok {
		return backend.CodeName(code)
	}
	return "storage_error"
}

func isEncrypted(text string) bool {
	doc, err := pem.Parse(text)
	return err == nil && doc.Type == backend.LabelEncryptedPrivateKey
}
