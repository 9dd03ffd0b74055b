package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/stretchr/testify/require"
)

type fleetOrg struct {
	orgID      string
	owner      string
	dispatcher string
	driver     string
	supervisor string
}

func newFleetOrg(t *testing.T, f *fixture) fleetOrg {
	t.Helper()
	owner := f.confirmedUser(t, "owner@example.com", "correct horse")
	org, err := f.members.CreateOrganization(context.Background(), owner.ID, "Acme Freight")
	require.NoError(t, err)

	return fleetOrg{
		orgID:      org.ID,
		owner:      owner.ID,
		dispatcher: f.member(t, org.ID, owner.ID, "dispatch@example.com", domain.RoleDispatcher),
		driver:     f.member(t, org.ID, owner.ID, "driver@example.com", domain.RoleDriver),
		supervisor: f.member(t, org.ID, owner.ID, "super@example.com", domain.RoleSupervisor),
	}
}

type plannedMission struct {
	vehicle domain.Vehicle
	depot   domain.Site
	school  domain.Site
	items   []domain.Item
	mission domain.Mission
}

func planMission(t *testing.T, f *fixture, o fleetOrg) plannedMission {
	t.Helper()
	ctx := context.Background()

	var p plannedMission
	var err error
	p.vehicle, err = f.fleet.CreateVehicle(ctx, o.orgID, o.dispatcher, service.VehicleParams{Name: "Bus 12", Type: "bus"})
	require.NoError(t, err)
	p.depot, err = f.fleet.CreateSite(ctx, o.orgID, o.dispatcher, service.SiteParams{Name: "Depot", Type: "depot"})
	require.NoError(t, err)
	p.school, err = f.fleet.CreateSite(ctx, o.orgID, o.dispatcher, service.SiteParams{
		Name: "School", Type: "school", Location: &domain.Point{Lat: 45.76, Lng: 4.83},
	})
	require.NoError(t, err)

	for _, name := range []string{"Pupil A", "Pupil B"} {
		item, err := f.fleet.CreateItem(ctx, o.orgID, o.dispatcher, service.ItemParams{
			Name: name, Type: "passenger", PickupSiteID: p.depot.ID,
		})
		require.NoError(t, err)
		p.items = append(p.items, item)
	}
	ids := []string{p.items[0].ID, p.items[1].ID}

	p.mission, err = f.fleet.CreateMission(ctx, o.orgID, o.dispatcher, service.MissionParams{
		Name:        "Morning run",
		VehicleID:   p.vehicle.ID,
		PlannedDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		Stops: []service.StopParams{
			{SiteID: p.depot.ID, Type: "pickup", ItemIDs: ids},
			{SiteID: p.school.ID, Type: "dropoff", ItemIDs: ids},
		},
	})
	require.NoError(t, err)
	return p
}

func TestCreateVehicleDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)

	v, err := f.fleet.CreateVehicle(ctx, o.orgID, o.owner, service.VehicleParams{Name: " Van 1 ", Type: "van"})
	require.NoError(t, err)
	require.Equal(t, "Van 1", v.Name)
	require.Equal(t, service.DefaultVehicleIcon, v.Icon)
	require.Equal(t, service.DefaultVehicleColor, v.Color)
	require.Equal(t, domain.VehicleActive, v.Status)
	require.Nil(t, v.Position)

	t.Run("validation", func(t *testing.T) {
		_, err := f.fleet.CreateVehicle(ctx, o.orgID, o.owner, service.VehicleParams{Type: "van"})
		require.ErrorIs(t, err, service.ErrValidation)

		_, err = f.fleet.CreateVehicle(ctx, o.orgID, o.owner, service.VehicleParams{Name: "x", Type: "van", Capacity: -1})
		require.ErrorIs(t, err, service.ErrValidation)

		_, err = f.fleet.CreateVehicle(ctx, o.orgID, o.owner, service.VehicleParams{
			Name: "x", Type: "van", Position: &domain.Point{Lat: 91},
		})
		require.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestSiteDefaultsToFallbackLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)

	s, err := f.fleet.CreateSite(ctx, o.orgID, o.dispatcher, service.SiteParams{Name: "Warehouse", Type: "warehouse"})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSiteLocation, s.Location)
}

func TestFleetPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)
	outsider := f.confirmedUser(t, "outsider@example.com", "correct horse")

	t.Run("members read", func(t *testing.T) {
		for _, id := range []string{o.owner, o.dispatcher, o.driver, o.supervisor} {
			list, err := f.fleet.ListMissions(ctx, o.orgID, id)
			require.NoError(t, err)
			require.Len(t, list, 1)
		}
	})

	t.Run("outsiders do not", func(t *testing.T) {
		_, err := f.fleet.ListVehicles(ctx, o.orgID, outsider.ID)
		require.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := f.fleet.ListSites(ctx, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", o.owner)
		require.ErrorIs(t, err, service.ErrOrganizationNotFound)
	})

	t.Run("drivers and supervisors cannot plan", func(t *testing.T) {
		for _, id := range []string{o.driver, o.supervisor} {
			_, err := f.fleet.CreateSite(ctx, o.orgID, id, service.SiteParams{Name: "x", Type: "depot"})
			require.ErrorIs(t, err, service.ErrForbidden)
			require.ErrorIs(t, f.fleet.DeleteMission(ctx, o.orgID, id, p.mission.ID), service.ErrForbidden)
		}
	})

	t.Run("drivers operate, supervisors do not", func(t *testing.T) {
		_, err := f.fleet.UpdateVehiclePosition(ctx, o.orgID, o.driver, p.vehicle.ID, domain.Point{Lat: 45, Lng: 4})
		require.NoError(t, err)

		_, err = f.fleet.UpdateVehiclePosition(ctx, o.orgID, o.supervisor, p.vehicle.ID, domain.Point{Lat: 45, Lng: 4})
		require.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestCreateMissionAssignsItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)

	require.Equal(t, domain.MissionPlanned, p.mission.Status)
	require.Equal(t, domain.RouteDelivery, p.mission.RouteType)
	require.Len(t, p.mission.Stops, 2)
	require.Equal(t, 1, p.mission.Stops[0].Order)
	require.Equal(t, 2, p.mission.Stops[1].Order)
	require.ElementsMatch(t, []string{p.items[0].ID, p.items[1].ID}, p.mission.ItemIDs)

	items, err := f.fleet.ListItems(ctx, o.orgID, o.driver)
	require.NoError(t, err)
	for _, item := range items {
		require.Equal(t, domain.ItemAssigned, item.Status)
		require.Equal(t, p.school.ID, item.DropoffSiteID, "items go to the first dropoff stop")
	}

	details, err := f.fleet.GetSiteDetails(ctx, o.orgID, o.supervisor, p.school.ID)
	require.NoError(t, err)
	require.Len(t, details.Items, 2)
}

func TestCreateMissionRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)
	date := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		params service.MissionParams
		err    error
	}{
		{"no date", service.MissionParams{Name: "x", VehicleID: p.vehicle.ID}, service.ErrValidation},
		{"no vehicle", service.MissionParams{Name: "x", PlannedDate: date}, service.ErrValidation},
		{"unknown vehicle", service.MissionParams{Name: "x", VehicleID: "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", PlannedDate: date}, service.ErrVehicleNotFound},
		{"bad route type", service.MissionParams{Name: "x", VehicleID: p.vehicle.ID, PlannedDate: date, RouteType: "teleport"}, service.ErrValidation},
		{"bad stop type", service.MissionParams{
			Name: "x", VehicleID: p.vehicle.ID, PlannedDate: date,
			Stops: []service.StopParams{{SiteID: p.depot.ID, Type: "detour"}},
		}, service.ErrValidation},
		{"duplicate order", service.MissionParams{
			Name: "x", VehicleID: p.vehicle.ID, PlannedDate: date,
			Stops: []service.StopParams{
				{SiteID: p.depot.ID, Type: "pickup", Order: 1},
				{SiteID: p.school.ID, Type: "dropoff", Order: 1},
			},
		}, service.ErrValidation},
		{"unknown site", service.MissionParams{
			Name: "x", VehicleID: p.vehicle.ID, PlannedDate: date,
			Stops: []service.StopParams{{SiteID: "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", Type: "depot"}},
		}, service.ErrSiteNotFound},
		{"stop item not carried", service.MissionParams{
			Name: "x", VehicleID: p.vehicle.ID, PlannedDate: date, ItemIDs: []string{p.items[0].ID},
			Stops: []service.StopParams{{SiteID: p.school.ID, Type: "dropoff", ItemIDs: []string{p.items[1].ID}}},
		}, service.ErrValidation},
		{"unknown item", service.MissionParams{
			Name: "x", VehicleID: p.vehicle.ID, PlannedDate: date, ItemIDs: []string{"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"},
		}, service.ErrItemNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.fleet.CreateMission(ctx, o.orgID, o.dispatcher, tc.params)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestMissionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)

	itemStatus := func(t *testing.T) domain.ItemStatus {
		t.Helper()
		items, err := f.fleet.ListItems(ctx, o.orgID, o.owner)
		require.NoError(t, err)
		return items[0].Status
	}

	m, err := f.fleet.UpdateMissionStatus(ctx, o.orgID, o.driver, p.mission.ID, domain.MissionInProgress)
	require.NoError(t, err)
	require.NotNil(t, m.StartedAt)
	require.Equal(t, domain.ItemInTransit, itemStatus(t))

	started := *m.StartedAt
	f.clock.Advance(time.Minute)

	m, err = f.fleet.UpdateMissionStatus(ctx, o.orgID, o.driver, p.mission.ID, domain.MissionPaused)
	require.NoError(t, err)
	m, err = f.fleet.UpdateMissionStatus(ctx, o.orgID, o.driver, p.mission.ID, domain.MissionInProgress)
	require.NoError(t, err)
	require.True(t, started.Equal(*m.StartedAt), "resuming keeps the first start time")

	t.Run("stops", func(t *testing.T) {
		stop, err := f.fleet.UpdateStopStatus(ctx, o.orgID, o.driver, p.mission.ID, m.Stops[0].ID, domain.StopArrived)
		require.NoError(t, err)
		require.NotNil(t, stop.ArrivedAt)

		stop, err = f.fleet.UpdateStopStatus(ctx, o.orgID, o.driver, p.mission.ID, m.Stops[0].ID, domain.StopCompleted)
		require.NoError(t, err)
		require.NotNil(t, stop.DepartedAt)

		_, err = f.fleet.UpdateStopStatus(ctx, o.orgID, o.driver, p.mission.ID, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", domain.StopArrived)
		require.ErrorIs(t, err, service.ErrStopNotFound)

		_, err = f.fleet.UpdateStopStatus(ctx, o.orgID, o.driver, p.mission.ID, m.Stops[0].ID, "lost")
		require.ErrorIs(t, err, service.ErrValidation)
	})

	m, err = f.fleet.UpdateMissionStatus(ctx, o.orgID, o.driver, p.mission.ID, domain.MissionCompleted)
	require.NoError(t, err)
	require.NotNil(t, m.EndedAt)
	require.Equal(t, domain.ItemDelivered, itemStatus(t))

	_, err = f.fleet.UpdateMissionStatus(ctx, o.orgID, o.driver, p.mission.ID, domain.MissionInProgress)
	require.ErrorIs(t, err, service.ErrMissionClosed)

	t.Run("delivered items stay delivered", func(t *testing.T) {
		require.NoError(t, f.fleet.DeleteMission(ctx, o.orgID, o.dispatcher, p.mission.ID))
		require.Equal(t, domain.ItemDelivered, itemStatus(t))

		_, err := f.fleet.GetMission(ctx, o.orgID, o.owner, p.mission.ID)
		require.ErrorIs(t, err, service.ErrMissionNotFound)
	})
}

func TestCancelledMissionReleasesItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)

	_, err := f.fleet.UpdateMissionStatus(ctx, o.orgID, o.dispatcher, p.mission.ID, domain.MissionCancelled)
	require.NoError(t, err)

	items, err := f.fleet.ListItems(ctx, o.orgID, o.owner)
	require.NoError(t, err)
	for _, item := range items {
		require.Equal(t, domain.ItemPending, item.Status)
	}
}

func TestDeleteInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)

	require.ErrorIs(t, f.fleet.DeleteVehicle(ctx, o.orgID, o.dispatcher, p.vehicle.ID), service.ErrInUse)
	require.ErrorIs(t, f.fleet.DeleteSite(ctx, o.orgID, o.dispatcher, p.school.ID), service.ErrInUse)
	require.ErrorIs(t, f.fleet.DeleteItem(ctx, o.orgID, o.dispatcher, p.items[0].ID), service.ErrInUse)

	require.NoError(t, f.fleet.DeleteMission(ctx, o.orgID, o.dispatcher, p.mission.ID))

	items, err := f.fleet.ListItems(ctx, o.orgID, o.owner)
	require.NoError(t, err)
	require.Equal(t, domain.ItemPending, items[0].Status, "undelivered items are released")

	require.NoError(t, f.fleet.DeleteItem(ctx, o.orgID, o.dispatcher, p.items[0].ID))
	require.NoError(t, f.fleet.DeleteVehicle(ctx, o.orgID, o.dispatcher, p.vehicle.ID))
	require.ErrorIs(t, f.fleet.DeleteVehicle(ctx, o.orgID, o.dispatcher, p.vehicle.ID), service.ErrVehicleNotFound)
}

func TestRepairDropoffs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newFleetOrg(t, f)
	p := planMission(t, f, o)

	// A mission without a dropoff stop leaves its items without a destination.
	orphan, err := f.fleet.CreateItem(ctx, o.orgID, o.dispatcher, service.ItemParams{Name: "Pupil C", Type: "passenger"})
	require.NoError(t, err)
	_, err = f.fleet.CreateMission(ctx, o.orgID, o.dispatcher, service.MissionParams{
		Name: "Pickup only", VehicleID: p.vehicle.ID, PlannedDate: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
		ItemIDs: []string{orphan.ID},
		Stops:   []service.StopParams{{SiteID: p.depot.ID, Type: "pickup"}},
	})
	require.NoError(t, err)

	// An assigned item that lost its destination.
	require.NoError(t, f.store.Items().SetItemDropoff(ctx, o.orgID, p.items[0].ID, ""))

	res, err := f.fleet.RepairDropoffs(ctx, o.orgID, o.dispatcher)
	require.NoError(t, err)
	require.Equal(t, service.RepairResult{Fixed: 1, Failed: 1}, res)

	item, err := f.store.Items().GetItem(ctx, o.orgID, p.items[0].ID)
	require.NoError(t, err)
	require.Equal(t, p.school.ID, item.DropoffSiteID)

	_, err = f.fleet.RepairDropoffs(ctx, o.orgID, o.driver)
	require.ErrorIs(t, err, service.ErrForbidden)
}
