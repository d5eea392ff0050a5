package hud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const keyringService = "weave-hud"

// RemoteConfig configures the out-of-process HUD bridge: an HTTP POST
// per notification, authenticated with an OAuth2 client-credentials
// token cached in the OS keyring between processes.
type RemoteConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	HTTPClient   *http.Client
}

// Remote is a Sink that posts notifications to an external HUD
// service. Push failures are swallowed (callers already isolate sink
// panics; a slow or unreachable HUD must never stall a workflow run).
type Remote struct {
	cfg    RemoteConfig
	ts     oauth2.TokenSource
	client *http.Client
}

// NewRemote returns a Remote sink. It does not acquire a token until
// the first Push; the OS keyring is consulted first so a token cached
// by a previous process is reused without a fresh client-credentials
// round trip.
func NewRemote(cfg RemoteConfig) *Remote {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ccConfig := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return &Remote{cfg: cfg, client: client, ts: &keyringCachingSource{
		inner:  ccConfig.TokenSource(context.Background()),
		client: cfg.ClientID,
	}}
}

// Push implements Sink.
func (r *Remote) Push(n Notification) {
	token, err := r.ts.Token()
	if err != nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err := r.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// keyringCachingSource wraps an oauth2.TokenSource, persisting the
// access token to the OS keyring and reusing it across process
// restarts as long as it has not expired. A JWT's own exp claim, when
// present, double-checks the keyring-cached token's expiry.
type keyringCachingSource struct {
	inner  oauth2.TokenSource
	client string
}

func (k *keyringCachingSource) Token() (*oauth2.Token, error) {
	if tok, ok := k.fromKeyring(); ok {
		return tok, nil
	}
	tok, err := k.inner.Token()
	if err != nil {
		return nil, fmt.Errorf("acquiring HUD bridge token: %w", err)
	}
	k.toKeyring(tok)
	return tok, nil
}

func (k *keyringCachingSource) fromKeyring() (*oauth2.Token, bool) {
	raw, err := keyring.Get(keyringService, k.client)
	if err != nil {
		return nil, false
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, false
	}
	if !tok.Valid() {
		return nil, false
	}
	if exp, err := expiryFromJWT(tok.AccessToken); err == nil && time.Now().After(exp) {
		return nil, false
	}
	return &tok, true
}

func (k *keyringCachingSource) toKeyring(tok *oauth2.Token) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return
	}
	_ = keyring.Set(keyringService, k.client, string(raw))
}

// expiryFromJWT reads the exp claim without verifying the signature;
// the token was already trusted when the OAuth2 client obtained it,
// this only re-derives the expiry for the keyring-cache freshness
// check above.
func expiryFromJWT(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}
