// Package filestore persists session values in a single JSON document on
// disk, optionally sealed with a passphrase.
package filestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/fintrack-client/kvstore"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	documentVersion = 1
	saltLength      = 16
	nonceLength     = 24
	keyLength       = 32

	// scrypt cost parameters (interactive login profile)
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrWrongPassphrase is returned when a sealed document cannot be opened.
var ErrWrongPassphrase = errors.New("session file cannot be opened with this passphrase")

var _ kvstore.Repo = (*Store)(nil)

// document is the on-disk layout. Plain documents carry Values; sealed
// documents carry Salt, Nonce and Box, where Box seals the JSON encoded values.
type document struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
	Salt    []byte            `json:"salt,omitempty"`
	Nonce   []byte            `json:"nonce,omitempty"`
	Box     []byte            `json:"box,omitempty"`
}

// Store is a file backed kvstore.Repo. Every operation re-reads the file so
// separate processes sharing the file observe each other's writes.
type Store struct {
	path       string
	passphrase []byte

	mu      sync.Mutex
	salt    []byte
	derived *[keyLength]byte
}

// New returns a Store writing to path. A non-empty passphrase seals the
// document with NaCl secretbox under a scrypt derived key.
func New(path, passphrase string) (*Store, error) {
	if path == "" {
		return nil, errors.New("[filestore.New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[filestore.New] creating directory: %w", err)
	}
	return &Store{path: path, passphrase: []byte(passphrase)}, nil
}

func (s *Store) Sealed() bool {
	return len(s.passphrase) > 0
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *Store) Disclosures() []string {
	if s.Sealed() {
		return []string{"The session file is encrypted, but anyone who learns the passphrase can read it."}
	}
	return []string{
		"The session file is stored unencrypted; any process running as your user can read it.",
		"Set STORAGE_PASSPHRASE to encrypt the session file at rest.",
	}
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported session file version %d", doc.Version)
	}

	if doc.Box == nil {
		if s.Sealed() {
			// A plain file is resealed on the next write.
			s.salt = nil
		}
		if doc.Values == nil {
			doc.Values = make(map[string]string)
		}
		return doc.Values, nil
	}

	if !s.Sealed() {
		return nil, ErrWrongPassphrase
	}
	if len(doc.Nonce) != nonceLength {
		return nil, fmt.Errorf("corrupt nonce in %s", s.path)
	}
	key, err := s.key(doc.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceLength]byte
	copy(nonce[:], doc.Nonce)
	plain, ok := secretbox.Open(nil, doc.Box, &nonce, key)
	if !ok {
		return nil, ErrWrongPassphrase
	}

	values := make(map[string]string)
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("decoding sealed values: %w", err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	doc := document{Version: documentVersion}

	if !s.Sealed() {
		doc.Values = values
	} else {
		if s.salt == nil {
			salt := make([]byte, saltLength)
			if _, err := io.ReadFull(rand.Reader, salt); err != nil {
				return fmt.Errorf("generating salt: %w", err)
			}
			s.salt = salt
			s.derived = nil
		}
		key, err := s.key(s.salt)
		if err != nil {
			return err
		}
		var nonce [nonceLength]byte
		if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
			return fmt.Errorf("generating nonce: %w", err)
		}
		plain, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("encoding values: %w", err)
		}
		doc.Salt = s.salt
		doc.Nonce = nonce[:]
		doc.Box = secretbox.Seal(nil, plain, &nonce, key)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.path, err)
	}
	return writeAtomic(s.path, data)
}

// key returns the secretbox key for salt, deriving it once per salt.
func (s *Store) key(salt []byte) (*[keyLength]byte, error) {
	if s.derived != nil && string(s.salt) == string(salt) {
		return s.derived, nil
	}
	raw, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	var key [keyLength]byte
	copy(key[:], raw)
	s.salt = append([]byte(nil), salt...)
	s.derived = &key
	return s.derived, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
