// Package session persists the client's session: a bearer token plus small
// display hints, kept as flat string keys.
package session

import (
	"context"
	"fmt"

	"github.com/me/tutordesk/pkg/model"
)

// Store is a durable key/value store for session data.
// Clear removes every key the application owns and is a no-op on an empty
// store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

// Load reads the typed session out of st. Missing keys leave fields empty.
// An unrecognized role hint is dropped rather than trusted.
func Load(ctx context.Context, st Store) (model.Session, error) {
	var sess model.Session
	var err error

	if sess.Token, _, err = st.Get(ctx, model.KeyToken); err != nil {
		return sess, fmt.Errorf("load token: %w", err)
	}
	if sess.DisplayName, _, err = st.Get(ctx, model.KeyDisplayName); err != nil {
		return sess, fmt.Errorf("load display name: %w", err)
	}
	roleHint, _, err := st.Get(ctx, model.KeyRole)
	if err != nil {
		return sess, fmt.Errorf("load role: %w", err)
	}
	if role, ok := model.ParseRole(roleHint); ok {
		sess.Role = role
	}
	return sess, nil
}

// Save writes the non-empty fields of sess to st.
func Save(ctx context.Context, st Store, sess model.Session) error {
	values := []struct{ key, value string }{
		{model.KeyToken, sess.Token},
		{model.KeyDisplayName, sess.DisplayName},
		{model.KeyRole, sess.Role.String()},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := st.Set(ctx, v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}
