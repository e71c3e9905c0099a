package lyric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
)

// CallbackPath is where Honeywell redirects after authorization.
const CallbackPath = "/auth/lyric/callback"

// ErrMissingToken is returned when an entry carries no usable token.
var ErrMissingToken = errors.New("lyric: entry has no token")

// oauthConfig builds the OAuth2 client configuration. The redirect is
// derived from the externally reachable base URL.
func oauthConfig(cfg config.LyricConfig, clientID, clientSecret, externalURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizeURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		RedirectURL: strings.TrimRight(externalURL, "/") + CallbackPath,
	}
}

// withHTTPClient makes oauth2 use httpClient for token requests.
func withHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	if httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient)
}

func encodeToken(t *oauth2.Token) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encoding token: %w", err)
	}
	return string(b), nil
}

func decodeToken(s string) (*oauth2.Token, error) {
	if s == "" {
		return nil, ErrMissingToken
	}
	var t oauth2.Token
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingToken, err)
	}
	if t.AccessToken == "" && t.RefreshToken == "" {
		return nil, ErrMissingToken
	}
	return &t, nil
}

// savingTokenSource calls save whenever the wrapped source hands out a new
// access token. A failed save does not fail the request.
type savingTokenSource struct {
	src  oauth2.TokenSource
	save func(*oauth2.Token)

	mu     sync.Mutex
	access string
}

func newSavingTokenSource(src oauth2.TokenSource, current *oauth2.Token, save func(*oauth2.Token)) *savingTokenSource {
	return &savingTokenSource{src: src, save: save, access: current.AccessToken}
}

// Token implements oauth2.TokenSource.
func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccessToken == s.access {
		return t, nil
	}
	s.access = t.AccessToken
	s.save(t)
	return t, nil
}
