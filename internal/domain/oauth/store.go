package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
)

const (
	clientKeyPrefix       = "client:"
	authSessionPrefix     = "auth-session:"
	upstreamSessionPrefix = "auth0-session:"
	tokenKeyPrefix        = "token:"
)

func clientKey(id string) string         { return clientKeyPrefix + id }
func authSessionKey(s string) string     { return authSessionPrefix + s }
func upstreamSessionKey(s string) string { return upstreamSessionPrefix + s }
func tokenKey(t string) string           { return tokenKeyPrefix + t }

func putJSON(ctx context.Context, store kv.Store, key string, v interface{}, ttl time.Duration) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("oauth: marshal %s: %w", key, err)
	}
	return store.Set(ctx, key, blob, ttl)
}

func getJSON(ctx context.Context, store kv.Store, key string, v interface{}) (bool, error) {
	blob, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Service) getClient(ctx context.Context, id string) (*Client, bool, error) {
	var c Client
	ok, err := getJSON(ctx, s.store, clientKey(id), &c)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &c, true, nil
}

func (s *Service) putClient(ctx context.Context, c *Client) error {
	return putJSON(ctx, s.store, clientKey(c.ClientID), c, 0)
}

func (s *Service) getAuthSession(ctx context.Context, state string) (*AuthorizationSession, bool, error) {
	var as AuthorizationSession
	ok, err := getJSON(ctx, s.store, authSessionKey(state), &as)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &as, true, nil
}

func (s *Service) putAuthSession(ctx context.Context, as *AuthorizationSession) error {
	return putJSON(ctx, s.store, authSessionKey(as.State), as, s.cfg.SessionTTL)
}

func (s *Service) deleteAuthSession(ctx context.Context, state string) error {
	_, err := s.store.Delete(ctx, authSessionKey(state))
	return err
}

func (s *Service) getUpstreamSession(ctx context.Context, sid string) (*UpstreamSession, bool, error) {
	var us UpstreamSession
	ok, err := getJSON(ctx, s.store, upstreamSessionKey(sid), &us)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &us, true, nil
}

func (s *Service) putUpstreamSession(ctx context.Context, us *UpstreamSession) error {
	return putJSON(ctx, s.store, upstreamSessionKey(us.SessionID), us, s.cfg.SessionTTL)
}

func (s *Service) deleteUpstreamSession(ctx context.Context, sid string) error {
	_, err := s.store.Delete(ctx, upstreamSessionKey(sid))
	return err
}

func (s *Service) getTokenRecord(ctx context.Context, key string) (*TokenRecord, bool, error) {
	var tr TokenRecord
	ok, err := getJSON(ctx, s.store, tokenKey(key), &tr)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &tr, true, nil
}

// putPendingCode persists a not-yet-exchanged authorization code's record,
// keyed by the code itself.
func (s *Service) putPendingCode(ctx context.Context, code string, tr *TokenRecord) error {
	return putJSON(ctx, s.store, tokenKey(code), tr, s.cfg.SessionTTL)
}

func (s *Service) deletePendingCode(ctx context.Context, code string) error {
	_, err := s.store.Delete(ctx, tokenKey(code))
	return err
}

// putTokenPair writes the same record under both the access and refresh
// token keys, per invariant 3: both keys must point at the same serialized
// blob for the record to be considered live.
func (s *Service) putTokenPair(ctx context.Context, tr *TokenRecord, ttl time.Duration) error {
	if err := putJSON(ctx, s.store, tokenKey(tr.AccessToken), tr, ttl); err != nil {
		return err
	}
	return putJSON(ctx, s.store, tokenKey(tr.RefreshToken), tr, 0)
}

// deleteTokenPair removes both the access and refresh token keys for tr.
func (s *Service) deleteTokenPair(ctx context.Context, tr *TokenRecord) error {
	if tr.AccessToken != "" {
		if _, err := s.store.Delete(ctx, tokenKey(tr.AccessToken)); err != nil {
			return err
		}
	}
	if tr.RefreshToken != "" {
		if _, err := s.store.Delete(ctx, tokenKey(tr.RefreshToken)); err != nil {
			return err
		}
	}
	return nil
}
