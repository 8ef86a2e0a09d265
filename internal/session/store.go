package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Store is the durable key-value store holding the token between runs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// tokenStore maps the token triple onto [Store] keys.
type tokenStore struct {
	Store
}

// load reads the persisted token. An expiry that is missing or not an integer is reported as 0.
func (t tokenStore) load(ctx context.Context) (Session, error) {
	var s Session

	token, _, err := t.Get(ctx, KeyAccessToken)
	if err != nil {
		return Session{}, err
	}
	s.AccessToken = token

	raw, ok, err := t.Get(ctx, KeyExpiresAt)
	if err != nil {
		return Session{}, err
	}
	if ok {
		if exp, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.ExpiresAt = exp
		}
	}

	tokenType, _, err := t.Get(ctx, KeyTokenType)
	if err != nil {
		return Session{}, err
	}
	s.TokenType = tokenType

	return s, nil
}

// save writes all three keys, stopping at the first failure.
func (t tokenStore) save(ctx context.Context, msg TokenMessage) error {
	entries := []struct{ key, value string }{
		{KeyAccessToken, msg.AccessToken},
		{KeyExpiresAt, strconv.FormatInt(msg.ExpiresAt, 10)},
		{KeyTokenType, msg.TokenType},
	}

	for _, e := range entries {
		if err := t.Set(ctx, e.key, e.value); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.key, err)
		}
	}
	return nil
}

// clear attempts every delete and joins the failures.
func (t tokenStore) clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyExpiresAt, KeyTokenType} {
		if err := t.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
