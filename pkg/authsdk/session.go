package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Session is a signed-in caller. Gateway sessions are not refreshed; sign
// in again once Expired reports true.
type Session struct {
	client *Client

	AccessToken string
	ExpiresAt   time.Time
	Role        string
	OrgID       string
	AAL         string
	User        User
}

func newSession(client *Client, sr *SessionResponse) *Session {
	expiresAt := time.Unix(sr.ExpiresAt, 0)
	if sr.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(sr.ExpiresIn) * time.Second)
	}
	return &Session{
		client:      client,
		AccessToken: sr.AccessToken,
		ExpiresAt:   expiresAt,
		Role:        sr.Role,
		OrgID:       sr.OrgID,
		AAL:         sr.AAL,
		User:        sr.User,
	}
}

// NewSessionFromToken wraps an access token obtained elsewhere, e.g. from
// the session cookie.
func (c *Client) NewSessionFromToken(accessToken string) *Session {
	return &Session{client: c, AccessToken: accessToken}
}

// Expired reports whether the access token is past its expiry. Sessions
// without a known expiry never report expired.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

func (s *Session) do(ctx context.Context, method, path string, body, target any, expectedStatus int) error {
	resp, err := s.client.doRequest(ctx, method, path, s.AccessToken, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, expectedStatus)
}

// GetUser returns the signed-in account.
func (s *Session) GetUser(ctx context.Context) (*User, error) {
	var u User
	if err := s.do(ctx, http.MethodGet, "/auth/v1/user", nil, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword sets a new password.
func (s *Session) UpdatePassword(ctx context.Context, password string) (*User, error) {
	var u User
	if err := s.do(ctx, http.MethodPut, "/auth/v1/user", UpdateUserRequest{Password: password}, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout clears the session cookie server side. The token itself stays
// valid until it expires.
func (s *Session) Logout(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, http.StatusNoContent)
}

// EnrollTOTP starts TOTP enrollment.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	var out TOTPEnrollResponse
	if err := s.do(ctx, http.MethodPost, "/v1/mfa/totp/enroll", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTOTP confirms enrollment and returns the backup codes.
func (s *Session) VerifyTOTP(ctx context.Context, code string) (*BackupCodesResponse, error) {
	var out BackupCodesResponse
	if err := s.do(ctx, http.MethodPost, "/v1/mfa/totp/verify", TOTPCodeRequest{Code: code}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegenerateBackupCodes replaces every backup code.
func (s *Session) RegenerateBackupCodes(ctx context.Context, code string) (*BackupCodesResponse, error) {
	var out BackupCodesResponse
	if err := s.do(ctx, http.MethodPost, "/v1/mfa/backup-codes", TOTPCodeRequest{Code: code}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableTOTP turns MFA off after checking a current code.
func (s *Session) DisableTOTP(ctx context.Context, code string) error {
	return s.do(ctx, http.MethodDelete, "/v1/mfa/totp", TOTPCodeRequest{Code: code}, nil, http.StatusNoContent)
}

// CreateOrganization creates an organization owned by the caller.
func (s *Session) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	var out Organization
	if err := s.do(ctx, http.MethodPost, "/v1/organizations", CreateOrganizationRequest{Name: name}, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Invite invites an email address into an organization.
func (s *Session) Invite(ctx context.Context, orgID string, req InviteRequest) (*Invitation, error) {
	var out Invitation
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/invitations"
	if err := s.do(ctx, http.MethodPost, path, req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMembers lists an organization's members.
func (s *Session) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	var out MembersResponse
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/members"
	if err := s.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Members, nil
}

// UpdateMemberRole changes a member's application role.
func (s *Session) UpdateMemberRole(ctx context.Context, orgID, userID, role string) (*Member, error) {
	var out Member
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/members/" + url.PathEscape(userID)
	if err := s.do(ctx, http.MethodPut, path, UpdateMemberRequest{Role: role}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckAccess asks whether the session's role may open path.
func (s *Session) CheckAccess(ctx context.Context, path string) (*AccessCheckResponse, error) {
	var out AccessCheckResponse
	q := url.Values{"path": {path}}
	if err := s.do(ctx, http.MethodGet, "/v1/access/check?"+q.Encode(), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Navigation returns the navigation tree filtered for the session's role.
// lang selects the label language; empty uses Accept-Language defaults.
func (s *Session) Navigation(ctx context.Context, lang string) (*NavigationResponse, error) {
	path := "/v1/navigation"
	if lang != "" {
		path += "?" + url.Values{"lang": {lang}}.Encode()
	}

	var out NavigationResponse
	if err := s.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
