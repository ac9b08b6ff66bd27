package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mindmorass/clipshelf/internal/storage"
)

const (
	// DropboxFilePath is the archive path inside the app folder
	DropboxFilePath = "/Apps/clipshelf/history" + storage.ArchiveExtension

	dropboxContentAPI = "https://content.dropboxapi.com/2"
	dropboxAPI        = "https://api.dropboxapi.com/2"
	dropboxAuthURL    = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL   = "https://api.dropboxapi.com/oauth2/token"

	// KeychainService is the service name for storing tokens
	KeychainService = "com.mindmorass.clipshelf.dropbox"

	keychainAccount = "tokens"
)

// TokenStore persists OAuth tokens between runs
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
	Delete() error
}

// ErrNoStoredToken is returned by a TokenStore that holds nothing yet
var ErrNoStoredToken = errors.New("no stored dropbox token")

// storedTokens is the JSON form tokens are kept in
type storedTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

func encodeTokens(token *oauth2.Token) ([]byte, error) {
	return json.Marshal(storedTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	})
}

func decodeTokens(data []byte) (*oauth2.Token, error) {
	var t storedTokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse stored tokens: %w", err)
	}
	return &oauth2.Token{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry}, nil
}

// persistingSource saves refreshed tokens back to the TokenStore
type persistingSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			slog.Warn("failed to save refreshed dropbox token", "err", err)
		}
	}
	return tok, nil
}

// DropboxBackend stores archives in the user's Dropbox app folder
type DropboxBackend struct {
	appKey      string
	appSecret   string
	contentURL  string
	apiURL      string
	oauthConfig *oauth2.Config
	tokens      TokenStore
	source      oauth2.TokenSource
	client      *http.Client
}

// NewDropboxBackend creates a new Dropbox backend
func NewDropboxBackend(appKey, appSecret string) *DropboxBackend {
	return &DropboxBackend{
		appKey:     appKey,
		appSecret:  appSecret,
		contentURL: dropboxContentAPI,
		apiURL:     dropboxAPI,
		tokens:     keychainTokens{},
		oauthConfig: &oauth2.Config{
			ClientID:     appKey,
			ClientSecret: appSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  dropboxAuthURL,
				TokenURL: dropboxTokenURL,
			},
		},
	}
}

// SetTokenStore replaces the keychain token store
func (b *DropboxBackend) SetTokenStore(store TokenStore) {
	b.tokens = store
}

// setEndpoints overrides the API base URLs
func (b *DropboxBackend) setEndpoints(contentURL, apiURL string) {
	b.contentURL = strings.TrimSuffix(contentURL, "/")
	b.apiURL = strings.TrimSuffix(apiURL, "/")
}

// Type returns the backend type
func (b *DropboxBackend) Type() BackendType {
	return BackendDropbox
}

// GetLocation returns the archive path once authenticated
func (b *DropboxBackend) GetLocation() string {
	if b.client == nil {
		return ""
	}
	return "dropbox:" + DropboxFilePath
}

// SetLocation is not used for Dropbox (path is fixed)
func (b *DropboxBackend) SetLocation(location string) error {
	return nil
}

// Init loads stored tokens and builds an authenticated client
func (b *DropboxBackend) Init(ctx context.Context) error {
	if b.appKey == "" {
		return fmt.Errorf("dropbox app key: %w", ErrNotConfigured)
	}

	token, err := b.tokens.Load()
	if err != nil {
		return fmt.Errorf("dropbox not authenticated: %w", err)
	}
	b.useToken(ctx, token)

	// force a refresh now so a revoked token fails at startup
	if _, err := b.source.Token(); err != nil {
		b.client = nil
		b.source = nil
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	return nil
}

func (b *DropboxBackend) useToken(ctx context.Context, token *oauth2.Token) {
	// refreshes outlive the caller's context
	ctx = context.WithoutCancel(ctx)
	src := &persistingSource{
		base:  b.oauthConfig.TokenSource(ctx, token),
		store: b.tokens,
		last:  token.AccessToken,
	}
	b.source = oauth2.ReuseTokenSource(token, src)
	client := oauth2.NewClient(ctx, b.source)
	client.Timeout = 30 * time.Second
	b.client = client
}

// Close releases resources
func (b *DropboxBackend) Close() error {
	if b.client != nil {
		b.client.CloseIdleConnections()
	}
	return nil
}

// Write uploads the snapshot archive, overwriting the previous one
func (b *DropboxBackend) Write(ctx context.Context, snap *storage.Snapshot) error {
	if b.client == nil {
		return ErrNotConfigured
	}

	data, err := storage.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}

	argsJSON, err := json.Marshal(map[string]any{
		"path":       DropboxFilePath,
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.contentURL+"/files/upload", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", string(argsJSON))

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Read downloads and decodes the snapshot archive
func (b *DropboxBackend) Read(ctx context.Context) (*storage.Snapshot, error) {
	if b.client == nil {
		return nil, ErrNotConfigured
	}

	argsJSON, _ := json.Marshal(map[string]string{"path": DropboxFilePath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.contentURL+"/files/download", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Dropbox-API-Arg", string(argsJSON))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if resp.StatusCode == http.StatusConflict && isDropboxNotFound(body) {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, string(body))
	}

	snap, err := storage.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return snap, nil
}

// GetModTime returns the last modification time from Dropbox metadata
func (b *DropboxBackend) GetModTime(ctx context.Context) (time.Time, error) {
	meta, err := b.getMetadata(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return meta.ServerModified, nil
}

// Exists returns true if the archive exists in Dropbox
func (b *DropboxBackend) Exists(ctx context.Context) bool {
	_, err := b.getMetadata(ctx)
	return err == nil
}

type dropboxMetadata struct {
	Rev            string    `json:"rev"`
	ContentHash    string    `json:"content_hash"`
	ServerModified time.Time `json:"server_modified"`
	Size           int64     `json:"size"`
}

func (b *DropboxBackend) getMetadata(ctx context.Context) (*dropboxMetadata, error) {
	if b.client == nil {
		return nil, ErrNotConfigured
	}

	argsJSON, _ := json.Marshal(map[string]string{"path": DropboxFilePath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL+"/files/get_metadata", bytes.NewReader(argsJSON))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusConflict && isDropboxNotFound(body) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get_metadata failed with status %d: %s", resp.StatusCode, string(body))
	}

	var meta dropboxMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetAuthURL returns the OAuth authorization URL for user authentication
func (b *DropboxBackend) GetAuthURL(state string) string {
	return b.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("token_access_type", "offline"),
	)
}

// ExchangeCode exchanges an authorization code for tokens and stores them
func (b *DropboxBackend) ExchangeCode(ctx context.Context, code string) error {
	token, err := b.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	if err := b.tokens.Save(token); err != nil {
		return err
	}
	b.useToken(ctx, token)
	return nil
}

// SetToken authenticates with an existing token
func (b *DropboxBackend) SetToken(ctx context.Context, token *oauth2.Token) {
	b.useToken(ctx, token)
}

// IsAuthenticated returns true if the backend has a client
func (b *DropboxBackend) IsAuthenticated() bool {
	return b.client != nil
}

// ClearTokens removes stored tokens (for logout)
func (b *DropboxBackend) ClearTokens() error {
	b.client = nil
	b.source = nil
	return b.tokens.Delete()
}

// isDropboxNotFound reports whether a 409 body describes a missing path
func isDropboxNotFound(body []byte) bool {
	var errResp struct {
		Error struct {
			Tag  string `json:".tag"`
			Path struct {
				Tag string `json:".tag"`
			} `json:"path"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		return errResp.Error.Path.Tag == "not_found"
	}
	return strings.Contains(string(body), "not_found")
}
