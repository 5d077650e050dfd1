package adp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryMargin is how long before expiry a cached token stops being reused.
const expiryMargin = 5 * time.Minute

// TokenCache persists an ADP access token between runs. ADP tokens last an
// hour and every command is a separate process.
type TokenCache struct {
	path string
}

func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// DefaultTokenPath returns ~/.config/portalsync/adp_<account>_token.json.
func DefaultTokenPath(account string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "portalsync", fmt.Sprintf("adp_%s_token.json", account)), nil
}

// Load reads the cached token. Returns nil, nil if the file does not exist.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &tok, nil
}

// Save writes the token with 0600 permissions, replacing the file atomically.
func (c *TokenCache) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing temp token file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming token file: %w", err)
	}
	return nil
}

// cachedTokenSource serves the on-disk token while it is fresh and saves
// every token it fetches from base.
type cachedTokenSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	cache  *TokenCache
	now    func() time.Time
	logger *slog.Logger
}

func (s *cachedTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.cache.Load()
	if err != nil {
		s.logger.Warn("ignoring unreadable ADP token cache", "error", err)
	}
	if tok != nil && tok.AccessToken != "" && s.now().Add(expiryMargin).Before(tok.Expiry) {
		return tok, nil
	}

	tok, err = s.base.Token()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Save(tok); err != nil {
		s.logger.Warn("could not cache ADP token", "error", err)
	}
	return tok, nil
}
