package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"albumvibe/config"
	"albumvibe/models"
)

const (
	// tokenEarlyExpiry is how long before its expiry a cached token is replaced.
	tokenEarlyExpiry = time.Minute
	// defaultTokenTimeout bounds one exchange when the http client sets no timeout.
	defaultTokenTimeout = 10 * time.Second
)

// TokenProvider hands out bearer tokens obtained through the client-credentials
// grant. A token is reused until it is close to expiring, and concurrent
// callers share a single refresh. Waiting callers give up when their own
// context ends; the refresh itself is bounded by the exchange timeout.
type TokenProvider struct {
	config  *clientcredentials.Config // nil when credentials are missing
	client  *http.Client
	timeout time.Duration

	refresh singleflight.Group
	mu      sync.Mutex
	token   *oauth2.Token
}

var _ oauth2.TokenSource = (*TokenProvider)(nil)

// NewTokenProvider builds a provider for the configured credentials. The token
// endpoint is called with httpClient; a nil client gets one with a default
// timeout.
func NewTokenProvider(cfg config.SpotifyConfig, httpClient *http.Client) *TokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTokenTimeout}
	}
	timeout := httpClient.Timeout
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}

	p := &TokenProvider{client: httpClient, timeout: timeout}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		p.config = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
	}
	return p
}

// Token returns a valid bearer token without a caller deadline.
func (p *TokenProvider) Token() (*oauth2.Token, error) {
	return p.TokenContext(context.Background())
}

// TokenContext returns a valid bearer token, exchanging the credentials when
// the cached one is missing or about to expire. It returns ctx's error as soon
// as ctx ends, even while a refresh is still running.
func (p *TokenProvider) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	if p.config == nil {
		return nil, &models.AuthError{Reason: "client id and secret are not configured"}
	}
	if token := p.cached(); token != nil {
		return token, nil
	}

	results := p.refresh.DoChan("token", func() (interface{}, error) {
		// a refresh that finished just before this one started already cached its token
		if token := p.cached(); token != nil {
			return token, nil
		}
		return p.exchange()
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("spotify: waiting for token: %w", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

func (p *TokenProvider) cached() *oauth2.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return nil
	}
	if !p.token.Expiry.IsZero() && time.Until(p.token.Expiry) <= tokenEarlyExpiry {
		return nil
	}
	return p.token
}

func (p *TokenProvider) exchange() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	log.Tracef("Requesting client credentials token from %s", p.config.TokenURL)
	token, err := p.config.Token(ctx)
	if err != nil {
		log.Errorf("Client credentials exchange failed: %v", err)
		var authErr *models.AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &models.AuthError{Reason: "client credentials exchange failed", Err: err}
	}
	if token.AccessToken == "" {
		return nil, &models.AuthError{Reason: "token response has no access_token"}
	}
	log.Debugf("Obtained catalog token valid until %s", token.Expiry.Format(time.RFC3339))

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	return token, nil
}

// bearerTransport attaches a token to every request. The token is fetched
// under the request's context so a stalled exchange cannot outlive it.
type bearerTransport struct {
	tokens *TokenProvider
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.TokenContext(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	authed := req.Clone(req.Context())
	token.SetAuthHeader(authed)
	return t.base.RoundTrip(authed)
}
