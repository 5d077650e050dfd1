// Package secrets looks up vendor credentials by name.
//
// Names are path-like, e.g. "/TSheets/accessToken" or "/ADP/CYK/SSLCert".
// The environment store maps them to variable names such as
// TSHEETS_ACCESS_TOKEN and ADP_CYK_SSL_CERT.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"

	"github.com/consultwithcase/portalsync/internal/apperr"
)

const KeyringService = "com.consultwithcase.portalsync"

// ErrNotFound is wrapped by lookups for secrets no store holds.
var ErrNotFound = errors.New("secret not found")

type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

func notFound(name string) error {
	return &apperr.Error{
		Kind:    apperr.KindConfiguration,
		Op:      "get secret",
		Message: fmt.Sprintf("secret %s is not set", name),
		Err:     ErrNotFound,
	}
}

// EnvName converts a secret name to its environment variable name.
func EnvName(name string) string {
	runes := []rune(strings.Trim(name, "/"))
	var b strings.Builder
	for i, r := range runes {
		switch {
		case r == '/' || r == '-' || r == '.' || r == ' ':
			b.WriteRune('_')
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			// "SSLCert" splits before the C; "TSheets" stays whole.
			acronymEnd := i >= 2 && unicode.IsUpper(prev) && unicode.IsUpper(runes[i-2]) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// EnvStore reads secrets from the process environment, falling back to
// values loaded from .env files.
type EnvStore struct {
	values map[string]string
	lookup func(string) (string, bool)
}

// NewEnvStore loads the given .env files. Missing files are skipped.
func NewEnvStore(files ...string) (*EnvStore, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	values := map[string]string{}
	if len(existing) > 0 {
		var err error
		values, err = godotenv.Read(existing...)
		if err != nil {
			return nil, fmt.Errorf("reading env files: %w", err)
		}
	}
	return &EnvStore{values: values, lookup: os.LookupEnv}, nil
}

func (s *EnvStore) Get(_ context.Context, name string) (string, error) {
	key := EnvName(name)
	if v, ok := s.lookup(key); ok && v != "" {
		return v, nil
	}
	if v := s.values[key]; v != "" {
		return v, nil
	}
	return "", notFound(name)
}

// KeyringStore reads secrets from the OS keyring.
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = KeyringService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Get(_ context.Context, name string) (string, error) {
	v, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", notFound(name)
		}
		return "", apperr.Configuration("get secret", "reading %s from keyring: %v", name, err)
	}
	return v, nil
}

func (s *KeyringStore) Set(name, value string) error {
	if err := keyring.Set(s.service, name, value); err != nil {
		return fmt.Errorf("saving %s to keyring: %w", name, err)
	}
	return nil
}

func (s *KeyringStore) Delete(name string) error {
	if err := keyring.Delete(s.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting %s from keyring: %w", name, err)
	}
	return nil
}

// Chain tries each store in order and returns the first value found.
type Chain []Store

func (c Chain) Get(ctx context.Context, name string) (string, error) {
	for _, s := range c {
		v, err := s.Get(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", notFound(name)
}

// GetAll resolves several secrets, failing on the first missing one.
func GetAll(ctx context.Context, s Store, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		v, err := s.Get(ctx, n)
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

// Map serves fixed values, such as credentials taken from the config file.
// Empty values count as missing.
type Map map[string]string

func (m Map) Get(_ context.Context, name string) (string, error) {
	if v := m[name]; v != "" {
		return v, nil
	}
	return "", notFound(name)
}
