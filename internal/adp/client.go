// Package adp is a client for the ADP Workforce Now time and HR APIs.
//
// Every call is made over mutual TLS with the account's certificate, and
// authorized with an OAuth2 client-credentials token.
package adp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/cache"
	"github.com/consultwithcase/portalsync/internal/secrets"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const (
	defaultBaseURL  = "https://api.adp.com"
	defaultTokenURL = "https://accounts.adp.com/auth/oauth/v2/token"
	requestTimeout  = 30 * time.Second
)

// Credentials are one ADP account's secrets.
type Credentials struct {
	ClientID     string
	ClientSecret string
	CertPEM      string
	KeyPEM       string
}

// SecretNames returns the secret names holding account's credentials, in
// Credentials field order.
func SecretNames(account string) []string {
	prefix := "/ADP/" + account
	return []string{prefix + "/clientId", prefix + "/clientSecret", prefix + "/SSLCert", prefix + "/SSLKey"}
}

// LoadCredentials reads account's credentials from the secret store.
func LoadCredentials(ctx context.Context, s secrets.Store, account string) (Credentials, error) {
	names := SecretNames(account)
	values, err := secrets.GetAll(ctx, s, names...)
	if err != nil {
		return Credentials{}, fmt.Errorf("loading ADP %s credentials: %w", account, err)
	}
	return Credentials{
		ClientID:     values[names[0]],
		ClientSecret: values[names[1]],
		CertPEM:      values[names[2]],
		KeyPEM:       values[names[3]],
	}, nil
}

type Options struct {
	BaseURL  string
	TokenURL string
	// TokenCachePath, when set, persists access tokens between runs.
	TokenCachePath string
	// WorkersTTL is how long the worker list is cached.
	WorkersTTL time.Duration
	Clock      timesheet.Clock
	Location   *time.Location
}

type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	workers    *cache.List[Worker]
	clock      timesheet.Clock
	loc        *time.Location
	logger     *slog.Logger
}

// NewClient builds an mTLS transport from the credentials' certificate and
// key and wraps it with client-credentials authorization. A malformed
// certificate is a configuration error.
func NewClient(creds Credentials, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, apperr.Configuration("adp client", "client id and secret are required")
	}
	cert, err := tls.X509KeyPair([]byte(creds.CertPEM), []byte(creds.KeyPEM))
	if err != nil {
		return nil, apperr.Configuration("adp client", "loading SSL certificate: %v", err)
	}

	mtls := &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
	}
	// The token endpoint also requires the client certificate.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, mtls)
	var src oauth2.TokenSource = cc.TokenSource(tokenCtx)
	if opts.TokenCachePath != "" {
		src = &cachedTokenSource{
			base:   src,
			cache:  NewTokenCache(opts.TokenCachePath),
			now:    time.Now,
			logger: logger,
		}
	}

	httpClient := oauth2.NewClient(tokenCtx, oauth2.ReuseTokenSource(nil, src))
	httpClient.Timeout = requestTimeout
	return newClient(httpClient, creds.ClientSecret, opts, logger), nil
}

func newClient(httpClient *http.Client, secret string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Clock == nil {
		opts.Clock = timesheet.RealClock{}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		secret:     secret,
		httpClient: httpClient,
		workers:    cache.NewList[Worker](opts.WorkersTTL),
		clock:      opts.Clock,
		loc:        opts.Location,
		logger:     logger,
	}
}

// Diagnostics describes the client for failure reports.
func (c *Client) Diagnostics(stage string) apperr.Diagnostics {
	return apperr.Diagnostics{Stage: stage, BaseURL: c.baseURL, Secret: c.secret}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("adp API request", "method", http.MethodGet, "path", path)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API request transport error", "path", path, "error", err, "elapsed", time.Since(requestStart))
		return apperr.VendorCallFailed("adp "+path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.VendorCallFailed("adp "+path, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("adp API response", "path", path, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(requestStart))

	// ADP answers 204 for a worker with no data in range.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("API request failed", "path", path, "status", resp.StatusCode, "response", truncate(string(body), 200))
		return apperr.VendorCallFailed("adp "+path, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 500)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
