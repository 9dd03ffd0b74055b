package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/stretchr/testify/require"
)

func createOrg(t *testing.T, s *sqlite.Store, name string) domain.Organization {
	t.Helper()
	owner := createUser(t, s, name+"@example.com")
	org := domain.Organization{ID: idx.New().String(), Name: name, OwnerID: owner.ID}
	require.NoError(t, s.Organizations().CreateOrganization(context.Background(), org))
	return org
}

type fleetRows struct {
	vehicle domain.Vehicle
	depot   domain.Site
	school  domain.Site
	item    domain.Item
	mission domain.Mission
}

func seedFleet(t *testing.T, s *sqlite.Store, orgID string) fleetRows {
	t.Helper()
	ctx := context.Background()

	var f fleetRows
	f.vehicle = domain.Vehicle{ID: idx.New().String(), OrgID: orgID, Name: "Bus 12", Type: "bus", Icon: "bus", Color: "#000000"}
	require.NoError(t, s.Vehicles().CreateVehicle(ctx, f.vehicle))

	f.depot = domain.Site{ID: idx.New().String(), OrgID: orgID, Name: "Depot", Type: "depot", Location: domain.DefaultSiteLocation}
	f.school = domain.Site{ID: idx.New().String(), OrgID: orgID, Name: "School", Type: "school", Location: domain.Point{Lat: 45.76, Lng: 4.83}}
	require.NoError(t, s.Sites().CreateSite(ctx, f.depot))
	require.NoError(t, s.Sites().CreateSite(ctx, f.school))

	f.item = domain.Item{ID: idx.New().String(), OrgID: orgID, Name: "Pupil A", Type: "passenger", PickupSiteID: f.depot.ID}
	require.NoError(t, s.Items().CreateItem(ctx, f.item))

	f.mission = domain.Mission{
		ID:          idx.New().String(),
		OrgID:       orgID,
		Name:        "Morning run",
		VehicleID:   f.vehicle.ID,
		RouteType:   domain.RouteDelivery,
		PlannedDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		ItemIDs:     []string{f.item.ID},
		Stops: []domain.Stop{
			{ID: idx.New().String(), SiteID: f.school.ID, Order: 2, Type: domain.StopDropoff, ItemIDs: []string{f.item.ID}},
			{ID: idx.New().String(), SiteID: f.depot.ID, Order: 1, Type: domain.StopPickup, ItemIDs: []string{f.item.ID}},
		},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Missions().CreateMission(ctx, f.mission)
	}))
	return f
}

func TestVehicles(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	org := createOrg(t, s, "acme")
	other := createOrg(t, s, "globex")

	v := domain.Vehicle{ID: idx.New().String(), OrgID: org.ID, Name: "Van 1", Type: "van", Identifier: "AB-123-CD", Icon: "truck", Color: "#3b82f6"}
	require.NoError(t, s.Vehicles().CreateVehicle(ctx, v))

	got, err := s.Vehicles().GetVehicle(ctx, org.ID, v.ID)
	require.NoError(t, err)
	require.Equal(t, "AB-123-CD", got.Identifier)
	require.Equal(t, domain.VehicleActive, got.Status)
	require.Nil(t, got.Position)

	t.Run("scoped by organization", func(t *testing.T) {
		_, err := s.Vehicles().GetVehicle(ctx, other.ID, v.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		list, err := s.Vehicles().ListVehicles(ctx, other.ID)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("position", func(t *testing.T) {
		at := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, s.Vehicles().UpdateVehiclePosition(ctx, org.ID, v.ID, domain.Point{Lat: 1.5, Lng: 2.5}, at))

		got, err := s.Vehicles().GetVehicle(ctx, org.ID, v.ID)
		require.NoError(t, err)
		require.Equal(t, &domain.Point{Lat: 1.5, Lng: 2.5}, got.Position)
		require.True(t, at.Equal(*got.PositionAt))

		err = s.Vehicles().UpdateVehiclePosition(ctx, other.ID, v.ID, domain.Point{}, at)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Vehicles().DeleteVehicle(ctx, org.ID, v.ID))
		require.ErrorIs(t, s.Vehicles().DeleteVehicle(ctx, org.ID, v.ID), store.ErrNotFound)
	})
}

func TestMissionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	org := createOrg(t, s, "acme")
	f := seedFleet(t, s, org.ID)

	got, err := s.Missions().GetMission(ctx, org.ID, f.mission.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MissionPlanned, got.Status)
	require.Equal(t, []string{f.item.ID}, got.ItemIDs)
	require.Len(t, got.Stops, 2)
	require.Equal(t, domain.StopPickup, got.Stops[0].Type, "stops come back in sequence order")
	require.Equal(t, []string{f.item.ID}, got.Stops[1].ItemIDs)
	require.Equal(t, domain.StopPending, got.Stops[1].Status)

	site, ok := got.DropoffSite()
	require.True(t, ok)
	require.Equal(t, f.school.ID, site)

	t.Run("status keeps the first start time", func(t *testing.T) {
		start := time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC)
		require.NoError(t, s.Missions().UpdateMissionStatus(ctx, org.ID, f.mission.ID, domain.MissionInProgress, &start, nil))
		require.NoError(t, s.Missions().UpdateMissionStatus(ctx, org.ID, f.mission.ID, domain.MissionPaused, nil, nil))

		got, err := s.Missions().GetMission(ctx, org.ID, f.mission.ID)
		require.NoError(t, err)
		require.Equal(t, domain.MissionPaused, got.Status)
		require.True(t, start.Equal(*got.StartedAt))
		require.Nil(t, got.EndedAt)
	})

	t.Run("stop status", func(t *testing.T) {
		at := time.Date(2025, 9, 1, 7, 45, 0, 0, time.UTC)
		stop := got.Stops[0]
		require.NoError(t, s.Missions().UpdateStopStatus(ctx, f.mission.ID, stop.ID, domain.StopArrived, &at, nil))

		err := s.Missions().UpdateStopStatus(ctx, idx.New().String(), stop.ID, domain.StopArrived, &at, nil)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.Missions().GetMission(ctx, org.ID, f.mission.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StopArrived, got.Stops[0].Status)
		require.True(t, at.Equal(*got.Stops[0].ArrivedAt))
	})

	t.Run("lookups by item", func(t *testing.T) {
		list, err := s.Missions().ListMissionsWithItem(ctx, org.ID, f.item.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Len(t, list[0].Stops, 2)

		all, err := s.Missions().ListMissions(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}

func TestFleetReferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	org := createOrg(t, s, "acme")
	f := seedFleet(t, s, org.ID)

	require.ErrorIs(t, s.Vehicles().DeleteVehicle(ctx, org.ID, f.vehicle.ID), store.ErrInUse)
	require.ErrorIs(t, s.Sites().DeleteSite(ctx, org.ID, f.school.ID), store.ErrInUse)
	require.ErrorIs(t, s.Items().DeleteItem(ctx, org.ID, f.item.ID), store.ErrInUse)

	require.NoError(t, s.Missions().DeleteMission(ctx, org.ID, f.mission.ID))

	require.NoError(t, s.Sites().DeleteSite(ctx, org.ID, f.depot.ID))
	item, err := s.Items().GetItem(ctx, org.ID, f.item.ID)
	require.NoError(t, err)
	require.Empty(t, item.PickupSiteID, "deleting a site clears the reference")

	require.NoError(t, s.Items().DeleteItem(ctx, org.ID, f.item.ID))
	require.NoError(t, s.Vehicles().DeleteVehicle(ctx, org.ID, f.vehicle.ID))
}

func TestItemAssignment(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	org := createOrg(t, s, "acme")
	f := seedFleet(t, s, org.ID)

	require.NoError(t, s.Items().AssignItems(ctx, org.ID, []string{f.item.ID}, domain.ItemAssigned, ""))

	missing, err := s.Items().ListItemsMissingDropoff(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.True(t, missing[0].NeedsDropoff())

	require.NoError(t, s.Items().SetItemDropoff(ctx, org.ID, f.item.ID, f.school.ID))
	missing, err = s.Items().ListItemsMissingDropoff(ctx, org.ID)
	require.NoError(t, err)
	require.Empty(t, missing)

	atSchool, err := s.Items().ListItemsAtSite(ctx, org.ID, f.school.ID)
	require.NoError(t, err)
	require.Len(t, atSchool, 1)

	require.NoError(t, s.Items().AssignItems(ctx, org.ID, []string{f.item.ID}, domain.ItemInTransit, f.depot.ID))
	item, err := s.Items().GetItem(ctx, org.ID, f.item.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ItemInTransit, item.Status)
	require.Equal(t, f.depot.ID, item.DropoffSiteID)

	require.NoError(t, s.Items().AssignItems(ctx, org.ID, nil, domain.ItemDelivered, ""))
}
