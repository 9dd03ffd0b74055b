// Package access decides which web-app routes a role may open and where a
// denied user is sent instead.
package access

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"gopkg.in/yaml.v3"
)

// DefaultSignInPath is where roles without a fallback route are sent.
const DefaultSignInPath = "/auth/sign-in"

// Table maps a role to path -> allowed. A missing role+path pair is denied
// for every role except admin.
type Table map[domain.Role]map[string]bool

// Defaults maps a role to the route a denied request falls back to.
type Defaults map[domain.Role]string

// Policy is the whole access configuration handed to NewResolver.
type Policy struct {
	Routes     Table    `yaml:"routes"`
	Defaults   Defaults `yaml:"defaults"`
	SignInPath string   `yaml:"sign_in_path"`
}

// DefaultPolicy returns the application's built-in route table.
func DefaultPolicy() Policy {
	return Policy{
		Routes: Table{
			domain.RoleAdmin: {},
			domain.RoleDispatcher: {
				"/home":                        true,
				"/home/settings":               true,
				"/home/settings/configuration": false,
				"/home/team":                   false,
				"/home/driver":                 true,
				"/home/client":                 true,
			},
			domain.RoleSupervisor: {
				"/home":                        true,
				"/home/settings":               true,
				"/home/settings/configuration": false,
				"/home/team":                   false,
				"/home/driver":                 true,
				"/home/client":                 true,
			},
			domain.RoleDriver: {
				"/home":                        false,
				"/home/settings":               true,
				"/home/settings/configuration": false,
				"/home/team":                   false,
				"/home/driver":                 true,
				"/home/client":                 false,
			},
			domain.RoleClient: {
				"/home":                        false,
				"/home/settings":               true,
				"/home/settings/configuration": false,
				"/home/team":                   false,
				"/home/driver":                 false,
				"/home/client":                 true,
			},
			domain.RoleStaff: {
				"/home":                        false,
				"/home/settings":               true,
				"/home/settings/configuration": false,
				"/home/team":                   false,
				"/home/driver":                 false,
				"/home/client":                 false,
			},
		},
		Defaults: Defaults{
			domain.RoleAdmin:      "/home",
			domain.RoleDispatcher: "/home",
			domain.RoleSupervisor: "/home",
			domain.RoleDriver:     "/home/driver",
			domain.RoleClient:     "/home/client",
			domain.RoleStaff:      "/home/settings",
		},
		SignInPath: DefaultSignInPath,
	}
}

// LoadPolicy reads a YAML policy file. The file replaces the built-in table
// entirely; an omitted sign_in_path keeps DefaultSignInPath.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("access: read policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy.
func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("access: parse policy: %w", err)
	}
	if p.SignInPath == "" {
		p.SignInPath = DefaultSignInPath
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate rejects unknown roles and non-absolute paths.
func (p Policy) Validate() error {
	for role, routes := range p.Routes {
		if _, err := domain.ParseRole(string(role)); err != nil {
			return fmt.Errorf("access: routes: %w", err)
		}
		for route := range routes {
			if !isAbsolute(route) {
				return fmt.Errorf("access: routes[%s]: path %q must start with /", role, route)
			}
		}
	}
	for role, route := range p.Defaults {
		if _, err := domain.ParseRole(string(role)); err != nil {
			return fmt.Errorf("access: defaults: %w", err)
		}
		if !isAbsolute(route) {
			return fmt.Errorf("access: defaults[%s]: path %q must start with /", role, route)
		}
	}
	if !isAbsolute(p.SignInPath) {
		return fmt.Errorf("access: sign_in_path %q must start with /", p.SignInPath)
	}
	return nil
}

func isAbsolute(p string) bool { return len(p) > 0 && p[0] == '/' }
