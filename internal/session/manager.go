// Package session owns the authenticate/terminate lifecycle against the
// broker and the process-wide registry of live sessions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"broker-bridgev1/internal/auth"
	"broker-bridgev1/internal/model"
	"broker-bridgev1/pkg/mofsl"
)

// RejectedError is a structured login refusal from the broker, surfaced
// verbatim to the caller.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("login rejected: %s", e.Message)
}

// Manager authenticates accounts and maintains the session registry.
type Manager struct {
	client   *mofsl.Client
	registry *Registry
}

// NewManager wires the broker transport to a registry.
func NewManager(client *mofsl.Client, registry *Registry) *Manager {
	return &Manager{client: client, registry: registry}
}

// Registry exposes the underlying session store.
func (m *Manager) Registry() *Registry { return m.registry }

// Login performs a single authentication attempt: password digest + current
// TOTP + second factor, one round trip, no retry. A structured non-SUCCESS
// response fails with *RejectedError; transport problems surface as
// *mofsl.RemoteError. On success the session is registered, replacing any
// prior session for the account.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) (*Session, error) {
	code, err := auth.CurrentTOTP(creds.TOTPSeed)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"userid":   creds.ClientCode,
		"password": auth.PasswordDigest(creds.Password, creds.APIKey),
		"totp":     code,
		"2FA":      creds.DOB,
	}

	slog.Info("attempting login", "client", creds.ClientCode)
	env, err := m.client.DoJSON(ctx, http.MethodPost, mofsl.RouteLogin,
		mofsl.Auth{APIKey: creds.APIKey, ClientCode: creds.ClientCode}, payload)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return nil, &RejectedError{Message: env.Message}
	}

	sess := &Session{
		ClientCode: creds.ClientCode,
		APIKey:     creds.APIKey,
		Token:      env.AuthToken,
		CreatedAt:  time.Now(),
	}
	m.registry.Register(sess)
	slog.Info("login successful", "client", creds.ClientCode)
	return sess, nil
}

// Logout is fire-and-forget: the registry entry is removed no matter what,
// and the remote notification is best-effort. Logout never returns an error.
func (m *Manager) Logout(ctx context.Context, clientCode string) {
	sess, err := m.registry.Lookup(clientCode)
	m.registry.Revoke(clientCode)
	if err != nil {
		return
	}

	payload := map[string]any{"clientcode": clientCode}
	env, err := m.client.DoJSON(ctx, http.MethodPost, mofsl.RouteLogout, sess.Auth(), payload)
	switch {
	case err != nil:
		slog.Warn("logout notification failed", "client", clientCode, "err", err)
	case !env.OK():
		slog.Warn("logout declined by broker", "client", clientCode, "message", env.Message)
	default:
		slog.Info("logged out", "client", clientCode)
	}
}
