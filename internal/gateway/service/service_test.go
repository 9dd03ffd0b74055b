package service_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/fleetdesk/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	mu   sync.Mutex
	msgs []service.Message
}

func (o *outbox) Send(_ context.Context, msg service.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

func (o *outbox) last(t *testing.T) service.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

// linkParam reads one query parameter of the last mailed link.
func (o *outbox) linkParam(t *testing.T, key string) string {
	t.Helper()
	u, err := url.Parse(o.last(t).Link)
	require.NoError(t, err)
	return u.Query().Get(key)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Now().UTC()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   *sqlite.Store
	mail    *outbox
	clock   *clock
	ident   *service.IdentityService
	mfa     *service.MFAService
	members *service.MembershipService
	fleet   *service.FleetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mail := &outbox{}
	clk := newClock()
	hasher := cryptox.PasswordHasher{Pepper: "test-pepper"}

	return &fixture{
		store: st,
		mail:  mail,
		clock: clk,
		ident: &service.IdentityService{
			Store:   st,
			Hasher:  hasher,
			Mailer:  mail,
			SiteURL: "https://fleet.example.com/",
			Now:     clk.Now,
		},
		mfa: &service.MFAService{Store: st, Issuer: "fleetdesk"},
		members: &service.MembershipService{
			Store:   st,
			Hasher:  hasher,
			Mailer:  mail,
			SiteURL: "https://fleet.example.com",
			Now:     clk.Now,
		},
		fleet: &service.FleetService{Store: st, Now: clk.Now},
	}
}

// confirmedUser signs up and redeems the confirmation link.
func (f *fixture) confirmedUser(t *testing.T, email, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	u, err := f.ident.SignUp(ctx, email, password, "")
	require.NoError(t, err)

	_, err = f.ident.VerifyOTP(ctx, domain.OTPSignup, f.mail.linkParam(t, "token_hash"))
	require.NoError(t, err)
	return u
}

// member invites email into org with role and redeems the invitation.
func (f *fixture) member(t *testing.T, orgID, inviterID, email string, role domain.Role) string {
	t.Helper()
	ctx := context.Background()

	_, err := f.members.Invite(ctx, service.InviteParams{OrgID: orgID, InviterID: inviterID, Email: email, Role: role})
	require.NoError(t, err)

	id, err := f.members.AcceptInvitation(ctx, service.AcceptInvitationParams{
		Token: f.mail.linkParam(t, "token"), Email: email, Password: "correct horse",
	})
	require.NoError(t, err)
	return id.UserID
}
