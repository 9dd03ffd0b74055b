package gateway_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestMissionPlanning(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	admin := signInAdmin(t, client)

	org, err := admin.CreateOrganization(t.Context(), "Harbour Freight")
	require.NoError(t, err)

	van, err := admin.CreateVehicle(t.Context(), org.ID, authsdk.CreateVehicleRequest{
		Name:        "Van 3",
		VehicleType: "van",
		Identifier:  "AB-123-CD",
	})
	require.NoError(t, err)
	require.Equal(t, "truck", van.Icon)

	warehouse, err := admin.CreateSite(t.Context(), org.ID, authsdk.CreateSiteRequest{
		Name:     "Warehouse",
		SiteType: "warehouse",
		Location: &authsdk.Point{Lat: 43.6, Lng: 1.44},
	})
	require.NoError(t, err)

	shop, err := admin.CreateSite(t.Context(), org.ID, authsdk.CreateSiteRequest{Name: "Shop", SiteType: "store"})
	require.NoError(t, err)
	require.Equal(t, authsdk.Point{Lat: 48.8566, Lng: 2.3522}, shop.Location)

	parcel, err := admin.CreateItem(t.Context(), org.ID, authsdk.CreateItemRequest{
		Name:         "Pallet 7",
		ItemType:     "pallet",
		Priority:     "urgent",
		PickupSiteID: warehouse.ID,
	})
	require.NoError(t, err)

	mission, err := admin.CreateMission(t.Context(), org.ID, authsdk.CreateMissionRequest{
		Name:        "Tuesday delivery",
		VehicleID:   van.ID,
		PlannedDate: "2025-09-02",
		Stops: []authsdk.MissionStopRequest{
			{SiteID: warehouse.ID, Type: "pickup", ItemIDs: []string{parcel.ID}},
			{SiteID: shop.ID, Type: "dropoff", ItemIDs: []string{parcel.ID}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "planned", mission.Status)

	details, err := admin.GetSite(t.Context(), org.ID, shop.ID)
	require.NoError(t, err)
	require.Len(t, details.Items, 1)
	require.Equal(t, "assigned", details.Items[0].Status)

	err = admin.DeleteVehicle(t.Context(), org.ID, van.ID)
	assertAPIError(t, err, http.StatusConflict, "resource_in_use")

	mission, err = admin.UpdateMissionStatus(t.Context(), org.ID, mission.ID, "in_progress")
	require.NoError(t, err)
	require.NotNil(t, mission.StartedAt)

	stop, err := admin.UpdateStopStatus(t.Context(), org.ID, mission.ID, mission.Stops[1].ID, "completed")
	require.NoError(t, err)
	require.NotNil(t, stop.DepartedAt)

	_, err = admin.UpdateMissionStatus(t.Context(), org.ID, mission.ID, "completed")
	require.NoError(t, err)

	items, err := admin.ListItems(t.Context(), org.ID)
	require.NoError(t, err)
	require.Equal(t, "delivered", items[0].Status)

	repaired, err := admin.RepairDropoffs(t.Context(), org.ID)
	require.NoError(t, err)
	require.Zero(t, repaired.Fixed)

	require.NoError(t, admin.DeleteMission(t.Context(), org.ID, mission.ID))
	require.NoError(t, admin.DeleteVehicle(t.Context(), org.ID, van.ID))

	missions, err := admin.ListMissions(t.Context(), org.ID)
	require.NoError(t, err)
	require.Empty(t, missions)
}
