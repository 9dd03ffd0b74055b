package http_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

type fleetOrg struct {
	id         string
	admin      string
	dispatcher string
	supervisor string
	driver     string
	client     string
	staff      string
}

func (f *fixture) fleetOrg(t *testing.T) fleetOrg {
	t.Helper()
	owner := f.confirmedSession(t, "owner@example.com")
	org := f.createOrganization(t, owner.AccessToken, "Acme Freight")
	admin := f.passwordGrant(t, "owner@example.com").AccessToken

	return fleetOrg{
		id:         org.ID,
		admin:      admin,
		dispatcher: f.inviteAndAccept(t, org.ID, admin, "dispatch@example.com", "dispatcher").AccessToken,
		supervisor: f.inviteAndAccept(t, org.ID, admin, "super@example.com", "supervisor").AccessToken,
		driver:     f.inviteAndAccept(t, org.ID, admin, "driver@example.com", "driver").AccessToken,
		client:     f.inviteAndAccept(t, org.ID, admin, "client@example.com", "client").AccessToken,
		staff:      f.inviteAndAccept(t, org.ID, admin, "staff@example.com", "staff").AccessToken,
	}
}

func (o fleetOrg) path(parts ...string) string {
	p := "/v1/organizations/" + o.id
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

func TestFleetAPI(t *testing.T) {
	f := newFixture(t)
	o := f.fleetOrg(t)

	rec := f.do(t, http.MethodPost, o.path("vehicles"),
		authsdk.CreateVehicleRequest{Name: "Bus 12", VehicleType: "bus", Capacity: 40}, bearer(o.dispatcher))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vehicle := decode[authsdk.Vehicle](t, rec)
	require.Equal(t, "truck", vehicle.Icon)
	require.Equal(t, "#3b82f6", vehicle.Color)
	require.Equal(t, "active", vehicle.Status)

	rec = f.do(t, http.MethodPost, o.path("sites"),
		authsdk.CreateSiteRequest{Name: "Depot", SiteType: "depot"}, bearer(o.dispatcher))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	depot := decode[authsdk.Site](t, rec)
	require.Equal(t, authsdk.Point{Lat: 48.8566, Lng: 2.3522}, depot.Location)

	rec = f.do(t, http.MethodPost, o.path("sites"),
		authsdk.CreateSiteRequest{Name: "School", SiteType: "school", Location: &authsdk.Point{Lat: 45.76, Lng: 4.83}}, bearer(o.dispatcher))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	school := decode[authsdk.Site](t, rec)

	rec = f.do(t, http.MethodPost, o.path("items"),
		authsdk.CreateItemRequest{Name: "Pupil A", ItemType: "passenger", PickupSiteID: depot.ID}, bearer(o.dispatcher))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[authsdk.Item](t, rec)
	require.Equal(t, "standard", item.Priority)
	require.Equal(t, "pending", item.Status)

	rec = f.do(t, http.MethodPost, o.path("missions"), authsdk.CreateMissionRequest{
		Name:        "Morning run",
		VehicleID:   vehicle.ID,
		PlannedDate: "2025-09-01",
		Stops: []authsdk.MissionStopRequest{
			{SiteID: depot.ID, Type: "pickup", ItemIDs: []string{item.ID}},
			{SiteID: school.ID, Type: "dropoff", ItemIDs: []string{item.ID}},
		},
	}, bearer(o.dispatcher))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	mission := decode[authsdk.Mission](t, rec)
	require.Equal(t, "planned", mission.Status)
	require.Equal(t, "2025-09-01", mission.PlannedDate)
	require.Equal(t, "delivery", mission.RouteType)
	require.Equal(t, []string{item.ID}, mission.AssignedItemIDs)
	require.Len(t, mission.Stops, 2)
	require.Equal(t, 1, mission.Stops[0].Order)

	t.Run("planning assigns items", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, o.path("items"), nil, bearer(o.supervisor))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		items := decode[authsdk.ItemsResponse](t, rec).Items
		require.Len(t, items, 1)
		require.Equal(t, "assigned", items[0].Status)
		require.Equal(t, school.ID, items[0].DropoffSiteID)

		rec = f.do(t, http.MethodGet, o.path("sites", school.ID), nil, bearer(o.dispatcher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		details := decode[authsdk.SiteDetailsResponse](t, rec)
		require.Equal(t, "School", details.Site.Name)
		require.Len(t, details.Items, 1)
	})

	t.Run("drivers run missions", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, o.path("missions"), nil, bearer(o.driver))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, decode[authsdk.MissionsResponse](t, rec).Missions, 1)

		rec = f.do(t, http.MethodPut, o.path("vehicles", vehicle.ID, "position"),
			authsdk.Point{Lat: 45.7, Lng: 4.8}, bearer(o.driver))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, &authsdk.Point{Lat: 45.7, Lng: 4.8}, decode[authsdk.Vehicle](t, rec).Position)

		rec = f.do(t, http.MethodPut, o.path("missions", mission.ID, "status"),
			authsdk.StatusRequest{Status: "in_progress"}, bearer(o.driver))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		started := decode[authsdk.Mission](t, rec)
		require.Equal(t, "in_progress", started.Status)
		require.NotNil(t, started.StartedAt)

		rec = f.do(t, http.MethodPut, o.path("missions", mission.ID, "stops", mission.Stops[0].ID, "status"),
			authsdk.StatusRequest{Status: "arrived"}, bearer(o.driver))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		stop := decode[authsdk.MissionStop](t, rec)
		require.Equal(t, "arrived", stop.Status)
		require.NotNil(t, stop.ArrivedAt)

		rec = f.do(t, http.MethodPut, o.path("missions", mission.ID, "status"),
			authsdk.StatusRequest{Status: "teleported"}, bearer(o.driver))
		requireError(t, rec, http.StatusBadRequest, "validation_failed")
	})

	t.Run("referenced rows stay", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, o.path("sites", school.ID), nil, bearer(o.dispatcher))
		requireError(t, rec, http.StatusConflict, "resource_in_use")

		rec = f.do(t, http.MethodDelete, o.path("vehicles", vehicle.ID), nil, bearer(o.dispatcher))
		requireError(t, rec, http.StatusConflict, "resource_in_use")
	})

	t.Run("closed missions", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, o.path("missions", mission.ID, "status"),
			authsdk.StatusRequest{Status: "completed"}, bearer(o.driver))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, decode[authsdk.Mission](t, rec).EndedAt)

		rec = f.do(t, http.MethodPut, o.path("missions", mission.ID, "status"),
			authsdk.StatusRequest{Status: "in_progress"}, bearer(o.driver))
		requireError(t, rec, http.StatusConflict, "mission_closed")
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, o.path("missions", mission.ID), nil, bearer(o.dispatcher))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodDelete, o.path("vehicles", vehicle.ID), nil, bearer(o.dispatcher))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodGet, o.path("missions", mission.ID), nil, bearer(o.dispatcher))
		requireError(t, rec, http.StatusNotFound, "mission_not_found")
	})
}

func TestFleetPageAccess(t *testing.T) {
	f := newFixture(t)
	o := f.fleetOrg(t)

	for _, tc := range []struct {
		name   string
		token  string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"clients cannot open the map", o.client, http.MethodGet, o.path("vehicles"), nil, http.StatusForbidden, authsdk.ErrorCodeAccessDenied},
		{"staff cannot open the map", o.staff, http.MethodGet, o.path("sites"), nil, http.StatusForbidden, authsdk.ErrorCodeAccessDenied},
		{"staff cannot see missions", o.staff, http.MethodGet, o.path("missions"), nil, http.StatusForbidden, authsdk.ErrorCodeAccessDenied},
		{"drivers cannot open the map", o.driver, http.MethodPost, o.path("vehicles"),
			authsdk.CreateVehicleRequest{Name: "Van", VehicleType: "van"}, http.StatusForbidden, authsdk.ErrorCodeAccessDenied},
		{"supervisors watch but do not plan", o.supervisor, http.MethodPost, o.path("vehicles"),
			authsdk.CreateVehicleRequest{Name: "Van", VehicleType: "van"}, http.StatusForbidden, "not_admin"},
		{"supervisors do not drive", o.supervisor, http.MethodPut, o.path("missions", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", "status"),
			authsdk.StatusRequest{Status: "in_progress"}, http.StatusForbidden, "not_admin"},
		{"no session", "", http.MethodGet, o.path("vehicles"), nil, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var opts []reqOption
			if tc.token != "" {
				opts = append(opts, bearer(tc.token))
			}
			rec := f.do(t, tc.method, tc.path, tc.body, opts...)
			requireError(t, rec, tc.status, tc.code)
		})
	}

	t.Run("other organizations", func(t *testing.T) {
		other := f.confirmedSession(t, "other@example.com")
		f.createOrganization(t, other.AccessToken, "Globex")
		admin := f.passwordGrant(t, "other@example.com").AccessToken

		rec := f.do(t, http.MethodGet, o.path("vehicles"), nil, bearer(admin))
		requireError(t, rec, http.StatusForbidden, "not_admin")
	})
}

func TestFleetRejectsMalformedInput(t *testing.T) {
	f := newFixture(t)
	o := f.fleetOrg(t)

	t.Run("ids", func(t *testing.T) {
		for _, tc := range []struct{ method, path, code string }{
			{http.MethodGet, "/v1/organizations/not-a-ulid/vehicles", "organization_not_found"},
			{http.MethodGet, o.path("sites", "garbage"), "site_not_found"},
			{http.MethodDelete, o.path("items", o.id+"X"), "item_not_found"},
			{http.MethodGet, o.path("missions", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"), "mission_not_found"},
			{http.MethodDelete, o.path("vehicles", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"), "vehicle_not_found"},
		} {
			rec := f.do(t, tc.method, tc.path, nil, bearer(o.admin))
			requireError(t, rec, http.StatusNotFound, tc.code)
		}
	})

	t.Run("planned date", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, o.path("missions"), authsdk.CreateMissionRequest{
			Name: "Run", VehicleID: "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", PlannedDate: "01/09/2025",
		}, bearer(o.admin))
		requireError(t, rec, http.StatusBadRequest, "validation_failed")
	})

	t.Run("coordinates", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, o.path("sites"),
			authsdk.CreateSiteRequest{Name: "Pole", SiteType: "depot", Location: &authsdk.Point{Lat: 91}}, bearer(o.admin))
		requireError(t, rec, http.StatusBadRequest, "validation_failed")
	})

	t.Run("repair with nothing to repair", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, o.path("items", "repair-dropoffs"), nil, bearer(o.admin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, authsdk.RepairResponse{}, decode[authsdk.RepairResponse](t, rec))
	})
}
