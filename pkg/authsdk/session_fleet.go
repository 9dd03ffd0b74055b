package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

func orgPath(orgID string, parts ...string) string {
	p := "/v1/organizations/" + url.PathEscape(orgID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// CreateVehicle adds a vehicle to the organization's fleet.
func (s *Session) CreateVehicle(ctx context.Context, orgID string, req CreateVehicleRequest) (*Vehicle, error) {
	var out Vehicle
	if err := s.do(ctx, http.MethodPost, orgPath(orgID, "vehicles"), req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListVehicles(ctx context.Context, orgID string) ([]Vehicle, error) {
	var out VehiclesResponse
	if err := s.do(ctx, http.MethodGet, orgPath(orgID, "vehicles"), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Vehicles, nil
}

// UpdateVehiclePosition reports where a vehicle is now.
func (s *Session) UpdateVehiclePosition(ctx context.Context, orgID, vehicleID string, p Point) (*Vehicle, error) {
	var out Vehicle
	if err := s.do(ctx, http.MethodPut, orgPath(orgID, "vehicles", vehicleID, "position"), p, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteVehicle(ctx context.Context, orgID, vehicleID string) error {
	return s.do(ctx, http.MethodDelete, orgPath(orgID, "vehicles", vehicleID), nil, nil, http.StatusNoContent)
}

func (s *Session) CreateSite(ctx context.Context, orgID string, req CreateSiteRequest) (*Site, error) {
	var out Site
	if err := s.do(ctx, http.MethodPost, orgPath(orgID, "sites"), req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListSites(ctx context.Context, orgID string) ([]Site, error) {
	var out SitesResponse
	if err := s.do(ctx, http.MethodGet, orgPath(orgID, "sites"), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sites, nil
}

// GetSite returns a site with the items picked up or dropped there.
func (s *Session) GetSite(ctx context.Context, orgID, siteID string) (*SiteDetailsResponse, error) {
	var out SiteDetailsResponse
	if err := s.do(ctx, http.MethodGet, orgPath(orgID, "sites", siteID), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteSite(ctx context.Context, orgID, siteID string) error {
	return s.do(ctx, http.MethodDelete, orgPath(orgID, "sites", siteID), nil, nil, http.StatusNoContent)
}

func (s *Session) CreateItem(ctx context.Context, orgID string, req CreateItemRequest) (*Item, error) {
	var out Item
	if err := s.do(ctx, http.MethodPost, orgPath(orgID, "items"), req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListItems(ctx context.Context, orgID string) ([]Item, error) {
	var out ItemsResponse
	if err := s.do(ctx, http.MethodGet, orgPath(orgID, "items"), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (s *Session) DeleteItem(ctx context.Context, orgID, itemID string) error {
	return s.do(ctx, http.MethodDelete, orgPath(orgID, "items", itemID), nil, nil, http.StatusNoContent)
}

// RepairDropoffs gives assigned items without a destination the dropoff
// site of their mission.
func (s *Session) RepairDropoffs(ctx context.Context, orgID string) (*RepairResponse, error) {
	var out RepairResponse
	if err := s.do(ctx, http.MethodPost, orgPath(orgID, "items", "repair-dropoffs"), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMission plans a mission and assigns its items.
func (s *Session) CreateMission(ctx context.Context, orgID string, req CreateMissionRequest) (*Mission, error) {
	var out Mission
	if err := s.do(ctx, http.MethodPost, orgPath(orgID, "missions"), req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListMissions(ctx context.Context, orgID string) ([]Mission, error) {
	var out MissionsResponse
	if err := s.do(ctx, http.MethodGet, orgPath(orgID, "missions"), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Missions, nil
}

func (s *Session) GetMission(ctx context.Context, orgID, missionID string) (*Mission, error) {
	var out Mission
	if err := s.do(ctx, http.MethodGet, orgPath(orgID, "missions", missionID), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateMissionStatus(ctx context.Context, orgID, missionID, status string) (*Mission, error) {
	var out Mission
	path := orgPath(orgID, "missions", missionID, "status")
	if err := s.do(ctx, http.MethodPut, path, StatusRequest{Status: status}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateStopStatus(ctx context.Context, orgID, missionID, stopID, status string) (*MissionStop, error) {
	var out MissionStop
	path := orgPath(orgID, "missions", missionID, "stops", stopID, "status")
	if err := s.do(ctx, http.MethodPut, path, StatusRequest{Status: status}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteMission(ctx context.Context, orgID, missionID string) error {
	return s.do(ctx, http.MethodDelete, orgPath(orgID, "missions", missionID), nil, nil, http.StatusNoContent)
}
