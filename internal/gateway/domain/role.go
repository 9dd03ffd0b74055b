package domain

import (
	"fmt"
	"strings"
)

// Role is the application role carried in a session. It decides which
// routes of the web app a user may open.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleSupervisor Role = "supervisor"
	RoleDriver     Role = "driver"
	RoleClient     Role = "client"
	RoleStaff      Role = "staff"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDispatcher, RoleSupervisor, RoleDriver, RoleClient, RoleStaff}
}

// ParseRole accepts only the known role tags.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleDispatcher, RoleSupervisor, RoleDriver, RoleClient, RoleStaff:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// OrgRole is a member's standing inside an organization, separate from the
// application role.
type OrgRole string

const (
	OrgRoleOwner   OrgRole = "owner"
	OrgRoleAdmin   OrgRole = "admin"
	OrgRoleManager OrgRole = "manager"
	OrgRoleMember  OrgRole = "member"
)

// ParseOrgRole accepts only the known organization roles.
func ParseOrgRole(s string) (OrgRole, error) {
	r := OrgRole(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleManager, OrgRoleMember:
		return r, nil
	}
	return "", fmt.Errorf("unknown organization role %q", s)
}

// CanManageMembers reports whether the org role may invite and re-role
// members.
func (r OrgRole) CanManageMembers() bool {
	return r == OrgRoleOwner || r == OrgRoleAdmin || r == OrgRoleManager
}

// CanPlanFleet reports whether the role may create and delete vehicles,
// sites, items and missions.
func (r Role) CanPlanFleet() bool {
	return r == RoleAdmin || r == RoleDispatcher
}

// CanOperateFleet reports whether the role may move vehicles and advance
// missions and their stops.
func (r Role) CanOperateFleet() bool {
	return r == RoleAdmin || r == RoleDispatcher || r == RoleDriver
}
