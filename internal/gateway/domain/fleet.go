package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultSiteLocation is where a site without coordinates is pinned until
// someone moves it on the map.
var DefaultSiteLocation = Point{Lat: 48.8566, Lng: 2.3522}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Validate rejects coordinates outside the WGS84 range.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	return nil
}

type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "active"
	VehicleInactive    VehicleStatus = "inactive"
	VehicleMaintenance VehicleStatus = "maintenance"
)

type Vehicle struct {
	ID               string
	OrgID            string
	Name             string
	Type             string
	Identifier       string // plate or fleet number
	Capacity         int    // seats or parcels
	CapacityWeightKg float64
	CapacityVolumeM3 float64
	FuelType         string
	RangeKm          float64
	Icon             string
	Color            string
	Status           VehicleStatus
	Position         *Point
	PositionAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Site struct {
	ID            string
	OrgID         string
	Name          string
	Type          string
	Address       string
	Location      Point
	CapacityItems int
	CreatedAt     time.Time
}

type ItemPriority string

const (
	PriorityLow      ItemPriority = "low"
	PriorityStandard ItemPriority = "standard"
	PriorityHigh     ItemPriority = "high"
	PriorityUrgent   ItemPriority = "urgent"
)

// ParseItemPriority accepts the known priorities. Blank means standard.
func ParseItemPriority(s string) (ItemPriority, error) {
	p := ItemPriority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PriorityStandard, nil
	case PriorityLow, PriorityStandard, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemAssigned  ItemStatus = "assigned"
	ItemInTransit ItemStatus = "in_transit"
	ItemDelivered ItemStatus = "delivered"
)

// Item is a transport order: something to carry from a pickup site to a
// dropoff site.
type Item struct {
	ID            string
	OrgID         string
	Name          string
	Type          string
	Priority      ItemPriority
	Description   string
	PickupSiteID  string
	DropoffSiteID string
	Status        ItemStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NeedsDropoff reports whether the item is on a mission but lost its
// destination.
func (i *Item) NeedsDropoff() bool {
	return i.DropoffSiteID == "" && (i.Status == ItemAssigned || i.Status == ItemInTransit)
}

type RouteType string

const (
	RouteDelivery  RouteType = "delivery"
	RoutePickup    RouteType = "pickup"
	RouteRoundTrip RouteType = "round_trip"
	RouteCustom    RouteType = "custom"
)

func ParseRouteType(s string) (RouteType, error) {
	t := RouteType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "":
		return RouteDelivery, nil
	case RouteDelivery, RoutePickup, RouteRoundTrip, RouteCustom:
		return t, nil
	}
	return "", fmt.Errorf("unknown route type %q", s)
}

type MissionStatus string

const (
	MissionPlanned    MissionStatus = "planned"
	MissionInProgress MissionStatus = "in_progress"
	MissionPaused     MissionStatus = "paused"
	MissionCompleted  MissionStatus = "completed"
	MissionCancelled  MissionStatus = "cancelled"
)

func ParseMissionStatus(s string) (MissionStatus, error) {
	st := MissionStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case MissionPlanned, MissionInProgress, MissionPaused, MissionCompleted, MissionCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown mission status %q", s)
}

// ItemStatus is the status a mission moving to st gives its items, and
// false when the items keep theirs.
func (st MissionStatus) ItemStatus() (ItemStatus, bool) {
	switch st {
	case MissionInProgress:
		return ItemInTransit, true
	case MissionCompleted:
		return ItemDelivered, true
	case MissionCancelled:
		return ItemPending, true
	}
	return "", false
}

type StopType string

const (
	StopPickup   StopType = "pickup"
	StopDropoff  StopType = "dropoff"
	StopWaypoint StopType = "waypoint"
	StopDepot    StopType = "depot"
)

func ParseStopType(s string) (StopType, error) {
	t := StopType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case StopPickup, StopDropoff, StopWaypoint, StopDepot:
		return t, nil
	}
	return "", fmt.Errorf("unknown stop type %q", s)
}

type StopStatus string

const (
	StopPending    StopStatus = "pending"
	StopArrived    StopStatus = "arrived"
	StopInProgress StopStatus = "in_progress"
	StopCompleted  StopStatus = "completed"
	StopSkipped    StopStatus = "skipped"
)

func ParseStopStatus(s string) (StopStatus, error) {
	st := StopStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StopPending, StopArrived, StopInProgress, StopCompleted, StopSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown stop status %q", s)
}

type Stop struct {
	ID         string
	MissionID  string
	SiteID     string
	Order      int
	Type       StopType
	ItemIDs    []string
	Status     StopStatus
	ArrivedAt  *time.Time
	DepartedAt *time.Time
}

// Mission (a route, or tournée) sends one vehicle through an ordered list
// of stops carrying the assigned items.
type Mission struct {
	ID           string
	OrgID        string
	Name         string
	Description  string
	VehicleID    string
	RouteType    RouteType
	PlannedDate  time.Time
	PlannedStart *time.Time
	Status       MissionStatus
	ItemIDs      []string
	Stops        []Stop
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SortStops orders stops by their sequence number.
func (m *Mission) SortStops() {
	sort.SliceStable(m.Stops, func(i, j int) bool { return m.Stops[i].Order < m.Stops[j].Order })
}

// DropoffSite returns the site of the earliest dropoff stop. Every item of
// the mission is delivered there.
func (m *Mission) DropoffSite() (string, bool) {
	best := -1
	for i, s := range m.Stops {
		if s.Type != StopDropoff {
			continue
		}
		if best < 0 || s.Order < m.Stops[best].Order {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return m.Stops[best].SiteID, true
}

// Stop returns the stop with the given id.
func (m *Mission) Stop(id string) (Stop, bool) {
	for _, s := range m.Stops {
		if s.ID == id {
			return s, true
		}
	}
	return Stop{}, false
}
