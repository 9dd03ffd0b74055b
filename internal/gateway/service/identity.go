package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/callback"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

const (
	DefaultLinkTTL           = 24 * time.Hour
	DefaultCodeTTL           = 5 * time.Minute
	DefaultMFAChallengeTTL   = 5 * time.Minute
	DefaultMinPasswordLength = 8

	// DefaultRecoveryNext is where a recovery link lands when the caller
	// gives no redirect.
	DefaultRecoveryNext = "/update-password"
)

var _ callback.Provider = (*IdentityService)(nil)

// IdentityService is the local identity provider: accounts, email links,
// password sign-in and PKCE authorization codes.
type IdentityService struct {
	Store   store.Store
	Hasher  cryptox.PasswordHasher
	Mailer  Mailer
	SiteURL string

	LinkTTL           time.Duration
	CodeTTL           time.Duration
	MFAChallengeTTL   time.Duration
	MinPasswordLength int

	Now func() time.Time
}

func (s *IdentityService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *IdentityService) linkTTL() time.Duration {
	if s.LinkTTL > 0 {
		return s.LinkTTL
	}
	return DefaultLinkTTL
}

func (s *IdentityService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

func (s *IdentityService) challengeTTL() time.Duration {
	if s.MFAChallengeTTL > 0 {
		return s.MFAChallengeTTL
	}
	return DefaultMFAChallengeTTL
}

// SignUp creates an unconfirmed account and mails the confirmation link.
func (s *IdentityService) SignUp(ctx context.Context, email, password, redirectTo string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if err := checkPassword(password, s.MinPasswordLength); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var tokenHash string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserAlreadyExists
			}
			return err
		}
		tokenHash, err = s.createLinkToken(ctx, tx, user.ID, domain.OTPSignup, redirectTo)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user signed up", slog.String("user_id", user.ID))
	return user, s.sendLink(ctx, user.Email, domain.OTPSignup, tokenHash, redirectTo)
}

// SendMagicLink mails a sign-in link. Unknown addresses succeed silently.
func (s *IdentityService) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	return s.mailLink(ctx, email, domain.OTPMagicLink, redirectTo)
}

// RequestRecovery mails a password recovery link. Unknown addresses
// succeed silently.
func (s *IdentityService) RequestRecovery(ctx context.Context, email, redirectTo string) error {
	if redirectTo == "" {
		redirectTo = DefaultRecoveryNext
	}
	return s.mailLink(ctx, email, domain.OTPRecovery, redirectTo)
}

// ResendLink re-issues a link of the given type. Earlier links of that
// type stop working. A signup link is not resent to a confirmed account.
func (s *IdentityService) ResendLink(ctx context.Context, email string, otpType domain.OTPType, redirectTo string) error {
	switch otpType {
	case domain.OTPSignup:
		u, err := s.lookup(ctx, email)
		if err != nil || u == nil || u.Confirmed() {
			return err
		}
		return s.mailLink(ctx, email, domain.OTPSignup, redirectTo)
	case domain.OTPMagicLink, domain.OTPEmail:
		return s.mailLink(ctx, email, domain.OTPMagicLink, redirectTo)
	case domain.OTPRecovery:
		return s.RequestRecovery(ctx, email, redirectTo)
	}
	return ErrValidation.WithMessage(fmt.Sprintf("cannot resend a %q link", otpType))
}

func (s *IdentityService) lookup(ctx context.Context, email string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *IdentityService) mailLink(ctx context.Context, email string, otpType domain.OTPType, redirectTo string) error {
	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		slogx.FromContext(ctx).Debug("link requested for unknown email", slog.String("type", string(otpType)))
		return nil
	}

	var tokenHash string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		tokenHash, err = s.createLinkToken(ctx, tx, u.ID, otpType, redirectTo)
		return err
	})
	if err != nil {
		return err
	}
	return s.sendLink(ctx, u.Email, otpType, tokenHash, redirectTo)
}

// createLinkToken replaces the user's pending tokens of otpType with a new
// one and returns the token hash that goes into the link.
func (s *IdentityService) createLinkToken(ctx context.Context, tx store.Tx, userID string, otpType domain.OTPType, redirectTo string) (string, error) {
	tokenHash, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	if err := tx.OneTimeTokens().DeleteUserTokens(ctx, userID, otpType); err != nil {
		return "", fmt.Errorf("drop previous tokens: %w", err)
	}

	now := s.now()
	err = tx.OneTimeTokens().CreateOneTimeToken(ctx, domain.OneTimeToken{
		ID:          idx.NewAt(now).String(),
		UserID:      userID,
		Type:        otpType,
		Fingerprint: cryptox.FingerprintToken(tokenHash),
		RedirectTo:  redirectTo,
		ExpiresAt:   now.Add(s.linkTTL()),
		CreatedAt:   now,
	})
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return tokenHash, nil
}

func (s *IdentityService) sendLink(ctx context.Context, to string, otpType domain.OTPType, tokenHash, redirectTo string) error {
	if s.Mailer == nil {
		return nil
	}
	q := url.Values{
		"token_hash": {tokenHash},
		"type":       {string(otpType)},
	}
	if redirectTo != "" {
		q.Set("next", redirectTo)
	}
	link := strings.TrimSuffix(s.SiteURL, "/") + "/auth/confirm?" + q.Encode()

	if err := s.Mailer.Send(ctx, Message{To: to, Kind: string(otpType), Link: link}); err != nil {
		return fmt.Errorf("send %s link: %w", otpType, err)
	}
	return nil
}

// VerifyOTP redeems an emailed token hash. Unknown, used, expired and
// mismatched tokens all fail with otp_expired. The token is consumed in
// the same transaction that confirms the email.
func (s *IdentityService) VerifyOTP(ctx context.Context, otpType domain.OTPType, tokenHash string) (*domain.Identity, error) {
	want, err := domain.ParseOTPType(string(otpType))
	if err != nil {
		return nil, ErrValidation.WithMessage(err.Error())
	}
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, ErrOTPExpired
	}

	now := s.now()
	var id *domain.Identity

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		tok, err := tx.OneTimeTokens().GetOneTimeTokenByFingerprint(ctx, cryptox.FingerprintToken(tokenHash))
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPExpired
		}
		if err != nil {
			return err
		}

		if tok.UsedAt != nil || !now.Before(tok.ExpiresAt) || !tok.Type.Matches(want) {
			return ErrOTPExpired
		}

		if err := tx.OneTimeTokens().MarkOneTimeTokenUsed(ctx, tok.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOTPExpired
			}
			return err
		}

		if tok.Type.ConfirmsEmail() {
			if err := tx.Users().ConfirmEmail(ctx, tok.UserID, now); err != nil {
				return fmt.Errorf("confirm email: %w", err)
			}
		}

		u, err := tx.Users().GetUserByID(ctx, tok.UserID)
		if err != nil {
			return err
		}

		id = &domain.Identity{
			UserID: u.ID,
			Email:  u.Email,
			AMR:    []string{amrForLink(tok.Type)},
			AAL:    domain.AAL1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

func amrForLink(t domain.OTPType) string {
	switch t {
	case domain.OTPMagicLink:
		return domain.AMRMagicLink
	case domain.OTPInvite:
		return domain.AMRInvite
	}
	return domain.AMROTP
}

// SignInWithPassword checks credentials. Accounts with TOTP enabled get a
// *MFARequiredError carrying a fresh challenge instead of an identity.
func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	l := slogx.FromContext(ctx)

	u, err := s.lookup(ctx, email)
	if err != nil {
		var ae *AuthError
		if errors.As(err, &ae) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		l.Info("password sign-in failed", slog.String("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}

	if !u.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}

	amr := []string{domain.AMRPassword}

	if u.MFAEnabled() {
		token, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}
		now := s.now()
		err = s.Store.MFAChallenges().CreateMFAChallenge(ctx, domain.MFAChallenge{
			ID:        token,
			UserID:    u.ID,
			AMR:       amr,
			ExpiresAt: now.Add(s.challengeTTL()),
			CreatedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("create mfa challenge: %w", err)
		}
		return nil, &MFARequiredError{
			MFAToken: token,
			Methods:  []string{domain.MFAMethodTOTP, domain.MFAMethodBackupCode},
		}
	}

	return &domain.Identity{UserID: u.ID, Email: u.Email, AMR: amr, AAL: domain.AAL1}, nil
}

// Authorize records a PKCE authorization code for an authenticated
// identity and returns the code.
func (s *IdentityService) Authorize(ctx context.Context, id domain.Identity, challenge, method string) (string, error) {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return "", ErrValidation.WithMessage("code_challenge is required")
	}
	method, ok := cryptox.NormalizeChallengeMethod(method)
	if !ok {
		return "", ErrValidation.WithMessage("unsupported code_challenge_method")
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	aal := id.AAL
	if aal == "" {
		aal = domain.AAL1
	}

	now := s.now()
	err = s.Store.FlowStates().CreateFlowState(ctx, domain.FlowState{
		ID:                  idx.NewAt(now).String(),
		UserID:              id.UserID,
		CodeHash:            cryptox.FingerprintToken(code),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		AMR:                 id.AMR,
		AAL:                 aal,
		ExpiresAt:           now.Add(s.codeTTL()),
		CreatedAt:           now,
	})
	if err != nil {
		return "", fmt.Errorf("store flow state: %w", err)
	}
	return code, nil
}

// ExchangeCode redeems an authorization code with its PKCE verifier. Codes
// are single use.
func (s *IdentityService) ExchangeCode(ctx context.Context, code, verifier string) (*domain.Identity, error) {
	code = strings.TrimSpace(code)
	verifier = strings.TrimSpace(verifier)
	if code == "" || verifier == "" {
		return nil, ErrEmptyCodeOrVerifier
	}

	now := s.now()
	var id *domain.Identity

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		flow, err := tx.FlowStates().GetFlowStateByCodeHash(ctx, cryptox.FingerprintToken(code))
		if errors.Is(err, store.ErrNotFound) {
			return ErrFlowStateNotFound
		}
		if err != nil {
			return err
		}
		if flow.UsedAt != nil {
			return ErrFlowStateNotFound
		}
		if !now.Before(flow.ExpiresAt) {
			return ErrFlowStateExpired
		}
		if !cryptox.VerifyCodeChallenge(flow.CodeChallenge, flow.CodeChallengeMethod, verifier) {
			return ErrBadCodeVerifier
		}

		if err := tx.FlowStates().MarkFlowStateUsed(ctx, flow.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrFlowStateNotFound
			}
			return err
		}

		u, err := tx.Users().GetUserByID(ctx, flow.UserID)
		if err != nil {
			return err
		}
		id = &domain.Identity{UserID: u.ID, Email: u.Email, AMR: flow.AMR, AAL: flow.AAL}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// UpdatePassword replaces the password and voids pending recovery links.
func (s *IdentityService) UpdatePassword(ctx context.Context, userID, password string) error {
	if err := checkPassword(password, s.MinPasswordLength); err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return tx.OneTimeTokens().DeleteUserTokens(ctx, userID, domain.OTPRecovery)
	})
}

// GetUser returns the account behind a session.
func (s *IdentityService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrValidation.WithMessage("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrValidation.WithMessage("invalid email address")
	}
	return email, nil
}

func checkPassword(password string, minLen int) error {
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	if len([]rune(password)) < minLen {
		return ErrWeakPassword.WithMessage(fmt.Sprintf("password must be at least %d characters", minLen))
	}
	return nil
}
