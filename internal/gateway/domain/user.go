package domain

import "time"

type User struct {
	ID               string
	Email            string
	PasswordHash     string     // argon2 encoded, empty for link-only users
	EmailConfirmedAt *time.Time // nil until the signup/invite link is used
	MFAEnabledAt     *time.Time // nil unless TOTP is active
	MFASecret        *string    // base32 TOTP secret, set at enrollment
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) Confirmed() bool  { return u.EmailConfirmedAt != nil }
func (u *User) MFAEnabled() bool { return u.MFAEnabledAt != nil }

// Profile holds display data and an optional role override that wins over
// any membership role.
type Profile struct {
	UserID       string
	FirstName    string
	LastName     string
	RoleOverride *Role
	UpdatedAt    time.Time
}

func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}

type Organization struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

type Membership struct {
	OrgID     string
	UserID    string
	Email     string // joined from users for listings
	Role      Role
	OrgRole   OrgRole
	Approved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
