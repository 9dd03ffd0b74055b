package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// BootstrapService seeds the first administrator so a fresh deployment
// has someone able to create organizations and invite members.
type BootstrapService struct {
	Store             store.Store
	Hasher            cryptox.PasswordHasher
	MinPasswordLength int

	Now func() time.Time
}

// EnsureAdmin creates a confirmed account with the admin role override
// unless the email is already registered. It reports whether an account
// was created.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	l := slogx.FromContext(ctx)

	email, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}

	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		l.Debug("bootstrap admin already present")
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if err := checkPassword(password, s.MinPasswordLength); err != nil {
		return false, err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	admin := domain.RoleAdmin
	user := domain.User{
		ID:               idx.NewAt(now).String(),
		Email:            email,
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserAlreadyExists
			}
			return err
		}
		return tx.Profiles().UpsertProfile(ctx, domain.Profile{
			UserID:       user.ID,
			RoleOverride: &admin,
			UpdatedAt:    now,
		})
	})
	if errors.Is(err, ErrUserAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	l.Info("bootstrap admin created", slog.String("user_id", user.ID))
	return true, nil
}
