package access

import "github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"

// NavItem is one entry of the web app's sidebar. Items with children are
// groups; Label is an i18n key.
type NavItem struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Path     string    `json:"path,omitempty" yaml:"path,omitempty"`
	Children []NavItem `json:"children,omitempty" yaml:"children,omitempty"`
}

// DefaultNavigation is the sidebar of the web app.
func DefaultNavigation() []NavItem {
	return []NavItem{
		{ID: "application", Label: "navigation:application", Children: []NavItem{
			{ID: "home", Label: "navigation:home", Path: "/home"},
		}},
		{ID: "management", Label: "navigation:management", Children: []NavItem{
			{ID: "team", Label: "navigation:team", Path: "/home/team"},
			{ID: "driverDashboard", Label: "navigation:driverDashboard", Path: "/home/driver"},
			{ID: "clientDashboard", Label: "navigation:clientDashboard", Path: "/home/client"},
		}},
		{ID: "settings", Label: "navigation:settings", Children: []NavItem{
			{ID: "configuration", Label: "navigation:configuration", Path: "/home/settings/configuration"},
			{ID: "profile", Label: "navigation:profile", Path: "/home/settings"},
		}},
	}
}

// FilterNavigation keeps the items role may open. Groups keep only their
// accessible children and are dropped when none remain; items without a
// path are kept as-is. The input is not modified.
func (r *Resolver) FilterNavigation(role domain.Role, items []NavItem) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, item := range items {
		switch {
		case len(item.Children) > 0:
			children := r.FilterNavigation(role, item.Children)
			if len(children) == 0 {
				continue
			}
			item.Children = children
			out = append(out, item)
		case item.Path == "":
			out = append(out, item)
		case r.HasAccess(role, item.Path):
			out = append(out, item)
		}
	}
	return out
}
