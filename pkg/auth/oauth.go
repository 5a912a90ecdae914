package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ClientSecretsFile is the Google API credentials.json downloaded from
	// the Cloud Console, kept in the taskpilot config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile holds the access and refresh token.
	TokenFile = "token.json"

	// LocalhostAuthPort receives the OAuth redirect. It must match the
	// redirect URI registered for the client.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Authorizer runs the installed-app OAuth flow against the files in Dir.
type Authorizer struct {
	Dir    string
	Scopes []string
	// Prompt receives the URL the user must open.
	Prompt io.Writer
	Logger *zap.Logger
}

func (a *Authorizer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Authorizer) TokenPath() string { return filepath.Join(a.Dir, TokenFile) }

// Config reads the client secrets and pins the redirect URL to the local
// callback listener.
func (a *Authorizer) Config() (*oauth2.Config, error) {
	clientSecretsFile := filepath.Join(a.Dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}
	config, err := google.ConfigFromJSON(b, a.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = normalizeRedirect(config.RedirectURL, a.logger())
	return config, nil
}

func normalizeRedirect(redirect string, logger *zap.Logger) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" || redirect == "" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	}
	u, err := url.Parse(redirect)
	if err != nil {
		logger.Warn("could not parse redirect URL, using it as is", zap.String("redirect_url", redirect), zap.Error(err))
		return redirect
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		logger.Warn("redirect URL is not a localhost callback", zap.String("redirect_url", redirect))
		return redirect
	}
	if u.Port() != LocalhostAuthPort {
		u.Host = net.JoinHostPort(u.Hostname(), LocalhostAuthPort)
	}
	return u.String()
}

// Client returns an authenticated client. A stored token is reused and
// refreshed as needed; without one the web flow runs first.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	config, err := a.Config()
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(a.TokenPath())
	if err != nil {
		a.logger().Info("no stored token, starting web authorization", zap.String("path", a.TokenPath()))
		tok, err = a.tokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(a.TokenPath(), tok); err != nil {
			return nil, err
		}
	}
	src := &savingSource{
		base:   config.TokenSource(ctx, tok),
		path:   a.TokenPath(),
		last:   tok,
		logger: a.logger(),
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Reauthorize discards the stored token and runs the web flow again.
func (a *Authorizer) Reauthorize(ctx context.Context) error {
	if err := os.Remove(a.TokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file %s: %w", a.TokenPath(), err)
	}
	_, err := a.Client(ctx)
	return err
}

// savingSource persists the token whenever a refresh changes it.
type savingSource struct {
	base   oauth2.TokenSource
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Warn("could not persist refreshed token", zap.Error(err))
		}
		s.last = tok
	}
	return tok, nil
}

func (a *Authorizer) tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprint(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()
	defer server.Close()

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	if a.Prompt != nil {
		fmt.Fprintf(a.Prompt, "Open the following URL in your browser to authorize taskpilot:\n%s\n", authURL)
	}
	a.logger().Info("waiting for authorization code", zap.String("redirect_url", config.RedirectURL))

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	select {
	case code := <-codeCh:
		tok, err := config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization timed out: %w", ctx.Err())
	}
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
