package authsdk

import "time"

// ============================================================================
// Errors
// ============================================================================

// ErrorResponse is the JSON error envelope returned by every endpoint. It
// uses the GoTrue error vocabulary in Error (e.g. "otp_expired").
type ErrorResponse struct {
	// Error is the machine readable error code
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty"`
}

// MFARequiredResponse is returned with 409 Conflict when a password
// sign-in needs a second factor.
type MFARequiredResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description"`
	MFAToken         string   `json:"mfa_token"`
	Methods          []string `json:"mfa_methods"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports readiness of each dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// ============================================================================
// Well-known
// ============================================================================

// JWK is an Ed25519 public key (RFC 8037).
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKSResponse is the key set served at /.well-known/jwks.json.
type JWKSResponse struct {
	Keys []JWK `json:"keys"`
}

// ============================================================================
// Identity provider (GoTrue compatible)
// ============================================================================

// Grant types accepted by POST /auth/v1/token.
const (
	GrantPassword = "password"
	GrantPKCE     = "pkce"
	GrantMFATOTP  = "mfa_totp"
)

// SignUpRequest is the body of POST /auth/v1/signup.
type SignUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// TokenRequest is the body of POST /auth/v1/token. Which fields apply
// depends on the grant_type query parameter.
type TokenRequest struct {
	// password grant
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	// pkce grant
	AuthCode     string `json:"auth_code,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`

	// mfa_totp grant
	MFAToken string `json:"mfa_token,omitempty"`
	Method   string `json:"method,omitempty"` // totp or backup_code
	Code     string `json:"code,omitempty"`
}

// VerifyRequest is the body of POST /auth/v1/verify.
type VerifyRequest struct {
	Type      string `json:"type"`
	TokenHash string `json:"token_hash"`
}

// EmailLinkRequest is the body of POST /auth/v1/otp, /resend and /recover.
// Type is only read by /resend.
type EmailLinkRequest struct {
	Email      string `json:"email"`
	Type       string `json:"type,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// UpdateUserRequest is the body of PUT /auth/v1/user.
type UpdateUserRequest struct {
	Password string `json:"password"`
}

// User is the account as returned by the identity endpoints.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role,omitempty"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	MFAEnabled       bool       `json:"mfa_enabled"`
	CreatedAt        time.Time  `json:"created_at"`
}

// SessionResponse is a signed session, returned by the token and verify
// endpoints.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
	Role        string `json:"role"`
	OrgID       string `json:"org_id,omitempty"`
	AAL         string `json:"aal"`
	User        User   `json:"user"`
}

// ============================================================================
// MFA
// ============================================================================

// TOTPEnrollResponse carries the pending TOTP secret.
type TOTPEnrollResponse struct {
	Secret  string `json:"secret"`
	URI     string `json:"otpauth_uri"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// TOTPCodeRequest carries a TOTP code.
type TOTPCodeRequest struct {
	Code string `json:"code"`
}

// BackupCodesResponse lists backup codes. They are shown once.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// ============================================================================
// Organizations
// ============================================================================

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// InviteRequest is the body of POST /v1/organizations/{id}/invitations.
// OrgRole defaults to member.
type InviteRequest struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	OrgRole string `json:"org_role,omitempty"`
}

type Invitation struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	OrgRole   string    `json:"org_role"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcceptInvitationRequest is the body of POST /auth/accept-invitation.
type AcceptInvitationRequest struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Member struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	OrgRole  string `json:"org_role"`
	Approved bool   `json:"approved"`
}

type MembersResponse struct {
	Members []Member `json:"members"`
}

type UpdateMemberRequest struct {
	Role string `json:"role"`
}

// ============================================================================
// Fleet
// ============================================================================

// DateLayout is the format of mission planned dates.
const DateLayout = "2006-01-02"

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CreateVehicleRequest is the body of POST /v1/organizations/{id}/vehicles.
type CreateVehicleRequest struct {
	Name             string  `json:"name"`
	VehicleType      string  `json:"vehicle_type"`
	Identifier       string  `json:"identifier,omitempty"`
	Capacity         int     `json:"capacity,omitempty"`
	CapacityWeightKg float64 `json:"capacity_weight_kg,omitempty"`
	CapacityVolumeM3 float64 `json:"capacity_volume_m3,omitempty"`
	FuelType         string  `json:"fuel_type,omitempty"`
	RangeKm          float64 `json:"range_km,omitempty"`
	Icon             string  `json:"icon,omitempty"`
	Color            string  `json:"color,omitempty"`
	Position         *Point  `json:"position,omitempty"`
}

type Vehicle struct {
	ID               string     `json:"id"`
	OrgID            string     `json:"org_id"`
	Name             string     `json:"name"`
	VehicleType      string     `json:"vehicle_type"`
	Identifier       string     `json:"identifier,omitempty"`
	Capacity         int        `json:"capacity"`
	CapacityWeightKg float64    `json:"capacity_weight_kg"`
	CapacityVolumeM3 float64    `json:"capacity_volume_m3"`
	FuelType         string     `json:"fuel_type,omitempty"`
	RangeKm          float64    `json:"range_km"`
	Icon             string     `json:"icon"`
	Color            string     `json:"color"`
	Status           string     `json:"status"`
	Position         *Point     `json:"position,omitempty"`
	PositionAt       *time.Time `json:"position_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type VehiclesResponse struct {
	Vehicles []Vehicle `json:"vehicles"`
}

// CreateSiteRequest is the body of POST /v1/organizations/{id}/sites. A
// missing location pins the site at the default map center.
type CreateSiteRequest struct {
	Name               string `json:"name"`
	SiteType           string `json:"site_type"`
	Address            string `json:"address,omitempty"`
	Location           *Point `json:"location,omitempty"`
	CapacityItemsCount int    `json:"capacity_items_count,omitempty"`
}

type Site struct {
	ID                 string    `json:"id"`
	OrgID              string    `json:"org_id"`
	Name               string    `json:"name"`
	SiteType           string    `json:"site_type"`
	Address            string    `json:"address,omitempty"`
	Location           Point     `json:"location"`
	CapacityItemsCount int       `json:"capacity_items_count"`
	CreatedAt          time.Time `json:"created_at"`
}

type SitesResponse struct {
	Sites []Site `json:"sites"`
}

// SiteDetailsResponse is a site with the items picked up or dropped there.
type SiteDetailsResponse struct {
	Site  Site   `json:"site"`
	Items []Item `json:"items"`
}

// CreateItemRequest is the body of POST /v1/organizations/{id}/items.
// Priority defaults to standard.
type CreateItemRequest struct {
	Name         string `json:"name"`
	ItemType     string `json:"item_type"`
	Priority     string `json:"priority,omitempty"`
	Description  string `json:"description,omitempty"`
	PickupSiteID string `json:"pickup_site_id,omitempty"`
}

type Item struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	Name          string    `json:"name"`
	ItemType      string    `json:"item_type"`
	Priority      string    `json:"priority"`
	Description   string    `json:"description,omitempty"`
	PickupSiteID  string    `json:"pickup_site_id,omitempty"`
	DropoffSiteID string    `json:"dropoff_site_id,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type ItemsResponse struct {
	Items []Item `json:"items"`
}

// MissionStopRequest is one stop of a new mission. A zero order takes the
// stop's position in the list.
type MissionStopRequest struct {
	SiteID  string   `json:"site_id"`
	Order   int      `json:"order,omitempty"`
	Type    string   `json:"type"`
	ItemIDs []string `json:"item_ids,omitempty"`
}

// CreateMissionRequest is the body of POST /v1/organizations/{id}/missions.
// PlannedDate uses DateLayout. AssignedItemIDs defaults to every item named
// by a stop.
type CreateMissionRequest struct {
	Name            string               `json:"name"`
	Description     string               `json:"description,omitempty"`
	VehicleID       string               `json:"vehicle_id"`
	RouteType       string               `json:"route_type,omitempty"`
	PlannedDate     string               `json:"planned_date"`
	PlannedStart    *time.Time           `json:"planned_start_time,omitempty"`
	Stops           []MissionStopRequest `json:"stops"`
	AssignedItemIDs []string             `json:"assigned_items_ids,omitempty"`
}

type MissionStop struct {
	ID         string     `json:"id"`
	SiteID     string     `json:"site_id"`
	Order      int        `json:"order"`
	Type       string     `json:"type"`
	ItemIDs    []string   `json:"item_ids"`
	Status     string     `json:"status"`
	ArrivedAt  *time.Time `json:"actual_arrival_time,omitempty"`
	DepartedAt *time.Time `json:"actual_departure_time,omitempty"`
}

type Mission struct {
	ID              string        `json:"id"`
	OrgID           string        `json:"org_id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	VehicleID       string        `json:"vehicle_id"`
	RouteType       string        `json:"route_type"`
	PlannedDate     string        `json:"planned_date"`
	PlannedStart    *time.Time    `json:"planned_start_time,omitempty"`
	Status          string        `json:"status"`
	AssignedItemIDs []string      `json:"assigned_items_ids"`
	Stops           []MissionStop `json:"stops"`
	StartedAt       *time.Time    `json:"actual_start_time,omitempty"`
	EndedAt         *time.Time    `json:"actual_end_time,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type MissionsResponse struct {
	Missions []Mission `json:"missions"`
}

// StatusRequest moves a mission or a stop to a new status.
type StatusRequest struct {
	Status string `json:"status"`
}

// RepairResponse counts items given a dropoff site and items left without
// one.
type RepairResponse struct {
	Fixed  int `json:"fixed"`
	Failed int `json:"failed"`
}

// ============================================================================
// Access
// ============================================================================

// AccessCheckResponse answers GET /v1/access/check. Redirect is set only
// when the path is denied.
type AccessCheckResponse struct {
	Path     string `json:"path"`
	Role     string `json:"role"`
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

// NavItem is one entry of the navigation tree with its label translated.
type NavItem struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Path     string    `json:"path,omitempty"`
	Children []NavItem `json:"children,omitempty"`
}

type NavigationResponse struct {
	Role  string    `json:"role"`
	Items []NavItem `json:"items"`
}

// ============================================================================
// Callback error page
// ============================================================================

// CallbackErrorResponse is the localized payload behind
// /auth/callback/error.
type CallbackErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Locale  string         `json:"locale"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Action  CallbackAction `json:"action"`
}

// CallbackAction is the follow-up the error page offers.
type CallbackAction struct {
	ID    string `json:"id"` // resend_link or sign_in
	Label string `json:"label"`
	Path  string `json:"path"`
}
