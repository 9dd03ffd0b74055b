package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/access"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
)

// Pages whose access rules gate the fleet API.
const (
	MapBuilderPage = "/home"
	DriverPage     = "/home/driver"
)

// RequirePage answers 403 unless the session's role may open page in the
// web app, so the API follows the same route table as the guard.
func RequirePage(r *access.Resolver, page string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims, ok := httpx.ClaimsFromContext(req.Context())
			if !ok || !r.HasAccess(domain.Role(claims.Role), page) {
				httpx.WriteError(w, http.StatusForbidden, authsdk.ErrorCodeAccessDenied, "route not available for this role")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// FleetHandler serves the Map Builder API: vehicles, sites, items and
// missions of one organization.
type FleetHandler struct {
	Fleet *service.FleetService
}

// pathID reads a ULID path value. Anything else cannot name a row, so it
// answers notFound.
func pathID(w http.ResponseWriter, r *http.Request, name string, notFound error) (string, bool) {
	id, err := idx.Parse(r.PathValue(name))
	if err != nil {
		writeServiceError(w, r, notFound)
		return "", false
	}
	return id.String(), true
}

// HandleListVehicles handles GET /v1/organizations/{id}/vehicles
//
//	@Summary	List vehicles
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"Organization ID"
//	@Success	200	{object}	authsdk.VehiclesResponse
//	@Failure	401	{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Failure	403	{object}	authsdk.ErrorResponse	"Not a member"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router		/v1/organizations/{id}/vehicles [get].
func (h *FleetHandler) HandleListVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	vehicles, err := h.Fleet.ListVehicles(ctx, orgID, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.VehiclesResponse{Vehicles: make([]authsdk.Vehicle, 0, len(vehicles))}
	for _, v := range vehicles {
		out.Vehicles = append(out.Vehicles, toVehicle(v))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreateVehicle handles POST /v1/organizations/{id}/vehicles
//
//	@Summary		Create a vehicle
//	@Description	Admins and dispatchers only. Icon and color default to a blue truck.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Organization ID"
//	@Param			request	body		authsdk.CreateVehicleRequest	true	"Vehicle"
//	@Success		201		{object}	authsdk.Vehicle
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure		404		{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router			/v1/organizations/{id}/vehicles [post].
func (h *FleetHandler) HandleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	var req authsdk.CreateVehicleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	v, err := h.Fleet.CreateVehicle(ctx, orgID, httpx.UserIDFromContext(ctx), service.VehicleParams{
		Name:             req.Name,
		Type:             req.VehicleType,
		Identifier:       req.Identifier,
		Capacity:         req.Capacity,
		CapacityWeightKg: req.CapacityWeightKg,
		CapacityVolumeM3: req.CapacityVolumeM3,
		FuelType:         req.FuelType,
		RangeKm:          req.RangeKm,
		Icon:             req.Icon,
		Color:            req.Color,
		Position:         fromPoint(req.Position),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toVehicle(v))
}

// HandleUpdateVehiclePosition handles PUT /v1/organizations/{id}/vehicles/{vehicleID}/position
//
//	@Summary		Report a vehicle position
//	@Description	Admins, dispatchers and drivers.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Organization ID"
//	@Param			vehicleID	path		string			true	"Vehicle ID"
//	@Param			request		body		authsdk.Point	true	"Position"
//	@Success		200			{object}	authsdk.Vehicle
//	@Failure		400			{object}	authsdk.ErrorResponse	"Coordinates out of range"
//	@Failure		403			{object}	authsdk.ErrorResponse	"Role may not operate the fleet"
//	@Failure		404			{object}	authsdk.ErrorResponse	"Vehicle not found"
//	@Router			/v1/organizations/{id}/vehicles/{vehicleID}/position [put].
func (h *FleetHandler) HandleUpdateVehiclePosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}
	vehicleID, ok := pathID(w, r, "vehicleID", service.ErrVehicleNotFound)
	if !ok {
		return
	}

	var req authsdk.Point
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	v, err := h.Fleet.UpdateVehiclePosition(ctx, orgID, httpx.UserIDFromContext(ctx), vehicleID,
		domain.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toVehicle(v))
}

// HandleDeleteVehicle handles DELETE /v1/organizations/{id}/vehicles/{vehicleID}
//
//	@Summary	Delete a vehicle
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Param		id			path	string	true	"Organization ID"
//	@Param		vehicleID	path	string	true	"Vehicle ID"
//	@Success	204
//	@Failure	403	{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Vehicle not found"
//	@Failure	409	{object}	authsdk.ErrorResponse	"A mission uses the vehicle"
//	@Router		/v1/organizations/{id}/vehicles/{vehicleID} [delete].
func (h *FleetHandler) HandleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "vehicleID", service.ErrVehicleNotFound, h.Fleet.DeleteVehicle)
}

// HandleListSites handles GET /v1/organizations/{id}/sites
//
//	@Summary	List sites
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"Organization ID"
//	@Success	200	{object}	authsdk.SitesResponse
//	@Failure	403	{object}	authsdk.ErrorResponse	"Not a member"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router		/v1/organizations/{id}/sites [get].
func (h *FleetHandler) HandleListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	sites, err := h.Fleet.ListSites(ctx, orgID, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.SitesResponse{Sites: make([]authsdk.Site, 0, len(sites))}
	for _, s := range sites {
		out.Sites = append(out.Sites, toSite(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreateSite handles POST /v1/organizations/{id}/sites
//
//	@Summary		Create a site
//	@Description	Admins and dispatchers only. A site without a location is pinned at the default map center.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Organization ID"
//	@Param			request	body		authsdk.CreateSiteRequest	true	"Site"
//	@Success		201		{object}	authsdk.Site
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure		404		{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router			/v1/organizations/{id}/sites [post].
func (h *FleetHandler) HandleCreateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	var req authsdk.CreateSiteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s, err := h.Fleet.CreateSite(ctx, orgID, httpx.UserIDFromContext(ctx), service.SiteParams{
		Name:          req.Name,
		Type:          req.SiteType,
		Address:       req.Address,
		Location:      fromPoint(req.Location),
		CapacityItems: req.CapacityItemsCount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toSite(s))
}

// HandleGetSite handles GET /v1/organizations/{id}/sites/{siteID}
//
//	@Summary	Site details
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id		path		string	true	"Organization ID"
//	@Param		siteID	path		string	true	"Site ID"
//	@Success	200		{object}	authsdk.SiteDetailsResponse
//	@Failure	403		{object}	authsdk.ErrorResponse	"Not a member"
//	@Failure	404		{object}	authsdk.ErrorResponse	"Site not found"
//	@Router		/v1/organizations/{id}/sites/{siteID} [get].
func (h *FleetHandler) HandleGetSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}
	siteID, ok := pathID(w, r, "siteID", service.ErrSiteNotFound)
	if !ok {
		return
	}

	d, err := h.Fleet.GetSiteDetails(ctx, orgID, httpx.UserIDFromContext(ctx), siteID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.SiteDetailsResponse{Site: toSite(d.Site), Items: make([]authsdk.Item, 0, len(d.Items))}
	for _, i := range d.Items {
		out.Items = append(out.Items, toItem(i))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDeleteSite handles DELETE /v1/organizations/{id}/sites/{siteID}
//
//	@Summary	Delete a site
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Param		id		path	string	true	"Organization ID"
//	@Param		siteID	path	string	true	"Site ID"
//	@Success	204
//	@Failure	403	{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Site not found"
//	@Failure	409	{object}	authsdk.ErrorResponse	"A mission stops at the site"
//	@Router		/v1/organizations/{id}/sites/{siteID} [delete].
func (h *FleetHandler) HandleDeleteSite(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "siteID", service.ErrSiteNotFound, h.Fleet.DeleteSite)
}

// HandleListItems handles GET /v1/organizations/{id}/items
//
//	@Summary	List items
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"Organization ID"
//	@Success	200	{object}	authsdk.ItemsResponse
//	@Failure	403	{object}	authsdk.ErrorResponse	"Not a member"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router		/v1/organizations/{id}/items [get].
func (h *FleetHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	items, err := h.Fleet.ListItems(ctx, orgID, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.ItemsResponse{Items: make([]authsdk.Item, 0, len(items))}
	for _, i := range items {
		out.Items = append(out.Items, toItem(i))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreateItem handles POST /v1/organizations/{id}/items
//
//	@Summary		Create an item
//	@Description	Admins and dispatchers only. Priority defaults to standard.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Organization ID"
//	@Param			request	body		authsdk.CreateItemRequest	true	"Item"
//	@Success		201		{object}	authsdk.Item
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure		404		{object}	authsdk.ErrorResponse	"Organization or pickup site not found"
//	@Router			/v1/organizations/{id}/items [post].
func (h *FleetHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	var req authsdk.CreateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	i, err := h.Fleet.CreateItem(ctx, orgID, httpx.UserIDFromContext(ctx), service.ItemParams{
		Name:         req.Name,
		Type:         req.ItemType,
		Priority:     req.Priority,
		Description:  req.Description,
		PickupSiteID: req.PickupSiteID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toItem(i))
}

// HandleDeleteItem handles DELETE /v1/organizations/{id}/items/{itemID}
//
//	@Summary	Delete an item
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Param		id		path	string	true	"Organization ID"
//	@Param		itemID	path	string	true	"Item ID"
//	@Success	204
//	@Failure	403	{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Item not found"
//	@Failure	409	{object}	authsdk.ErrorResponse	"A mission carries the item"
//	@Router		/v1/organizations/{id}/items/{itemID} [delete].
func (h *FleetHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "itemID", service.ErrItemNotFound, h.Fleet.DeleteItem)
}

// HandleRepairDropoffs handles POST /v1/organizations/{id}/items/repair-dropoffs
//
//	@Summary		Repair item destinations
//	@Description	Gives assigned and in-transit items without a dropoff site the first dropoff stop of their newest mission.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Organization ID"
//	@Success		200	{object}	authsdk.RepairResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router			/v1/organizations/{id}/items/repair-dropoffs [post].
func (h *FleetHandler) HandleRepairDropoffs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	res, err := h.Fleet.RepairDropoffs(ctx, orgID, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.RepairResponse{Fixed: res.Fixed, Failed: res.Failed})
}

// HandleListMissions handles GET /v1/organizations/{id}/missions
//
//	@Summary	List missions
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"Organization ID"
//	@Success	200	{object}	authsdk.MissionsResponse
//	@Failure	403	{object}	authsdk.ErrorResponse	"Not a member"
//	@Failure	404	{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router		/v1/organizations/{id}/missions [get].
func (h *FleetHandler) HandleListMissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	missions, err := h.Fleet.ListMissions(ctx, orgID, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.MissionsResponse{Missions: make([]authsdk.Mission, 0, len(missions))}
	for _, m := range missions {
		out.Missions = append(out.Missions, toMission(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGetMission handles GET /v1/organizations/{id}/missions/{missionID}
//
//	@Summary	Mission details
//	@Tags		Fleet
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id			path		string	true	"Organization ID"
//	@Param		missionID	path		string	true	"Mission ID"
//	@Success	200			{object}	authsdk.Mission
//	@Failure	403			{object}	authsdk.ErrorResponse	"Not a member"
//	@Failure	404			{object}	authsdk.ErrorResponse	"Mission not found"
//	@Router		/v1/organizations/{id}/missions/{missionID} [get].
func (h *FleetHandler) HandleGetMission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}
	missionID, ok := pathID(w, r, "missionID", service.ErrMissionNotFound)
	if !ok {
		return
	}

	m, err := h.Fleet.GetMission(ctx, orgID, httpx.UserIDFromContext(ctx), missionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toMission(m))
}

// HandleCreateMission handles POST /v1/organizations/{id}/missions
//
//	@Summary		Plan a mission
//	@Description	Admins and dispatchers only. The carried items become assigned and take the first dropoff stop as their destination.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Organization ID"
//	@Param			request	body		authsdk.CreateMissionRequest	true	"Mission"
//	@Success		201		{object}	authsdk.Mission
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure		404		{object}	authsdk.ErrorResponse	"Vehicle, site or item not found"
//	@Router			/v1/organizations/{id}/missions [post].
func (h *FleetHandler) HandleCreateMission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}

	var req authsdk.CreateMissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var planned time.Time
	if d := strings.TrimSpace(req.PlannedDate); d != "" {
		t, err := time.Parse(authsdk.DateLayout, d)
		if err != nil {
			writeServiceError(w, r, service.ErrValidation.WithMessage("planned_date must look like "+authsdk.DateLayout))
			return
		}
		planned = t
	}

	params := service.MissionParams{
		Name:         req.Name,
		Description:  req.Description,
		VehicleID:    req.VehicleID,
		RouteType:    req.RouteType,
		PlannedDate:  planned,
		PlannedStart: req.PlannedStart,
		ItemIDs:      req.AssignedItemIDs,
	}
	for _, s := range req.Stops {
		params.Stops = append(params.Stops, service.StopParams{
			SiteID:  s.SiteID,
			Order:   s.Order,
			Type:    s.Type,
			ItemIDs: s.ItemIDs,
		})
	}

	m, err := h.Fleet.CreateMission(ctx, orgID, httpx.UserIDFromContext(ctx), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toMission(m))
}

// HandleUpdateMissionStatus handles PUT /v1/organizations/{id}/missions/{missionID}/status
//
//	@Summary		Move a mission along
//	@Description	Admins, dispatchers and drivers. Completed and cancelled missions are closed.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Organization ID"
//	@Param			missionID	path		string					true	"Mission ID"
//	@Param			request		body		authsdk.StatusRequest	true	"planned, in_progress, paused, completed or cancelled"
//	@Success		200			{object}	authsdk.Mission
//	@Failure		400			{object}	authsdk.ErrorResponse	"Unknown status"
//	@Failure		403			{object}	authsdk.ErrorResponse	"Role may not operate the fleet"
//	@Failure		404			{object}	authsdk.ErrorResponse	"Mission not found"
//	@Failure		409			{object}	authsdk.ErrorResponse	"Mission is closed"
//	@Router			/v1/organizations/{id}/missions/{missionID}/status [put].
func (h *FleetHandler) HandleUpdateMissionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}
	missionID, ok := pathID(w, r, "missionID", service.ErrMissionNotFound)
	if !ok {
		return
	}

	var req authsdk.StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	m, err := h.Fleet.UpdateMissionStatus(ctx, orgID, httpx.UserIDFromContext(ctx), missionID,
		domain.MissionStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toMission(m))
}

// HandleUpdateStopStatus handles PUT /v1/organizations/{id}/missions/{missionID}/stops/{stopID}/status
//
//	@Summary		Record progress at a stop
//	@Description	Admins, dispatchers and drivers.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Organization ID"
//	@Param			missionID	path		string					true	"Mission ID"
//	@Param			stopID		path		string					true	"Stop ID"
//	@Param			request		body		authsdk.StatusRequest	true	"pending, arrived, in_progress, completed or skipped"
//	@Success		200			{object}	authsdk.MissionStop
//	@Failure		400			{object}	authsdk.ErrorResponse	"Unknown status"
//	@Failure		403			{object}	authsdk.ErrorResponse	"Role may not operate the fleet"
//	@Failure		404			{object}	authsdk.ErrorResponse	"Mission or stop not found"
//	@Router			/v1/organizations/{id}/missions/{missionID}/stops/{stopID}/status [put].
func (h *FleetHandler) HandleUpdateStopStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}
	missionID, ok := pathID(w, r, "missionID", service.ErrMissionNotFound)
	if !ok {
		return
	}
	stopID, ok := pathID(w, r, "stopID", service.ErrStopNotFound)
	if !ok {
		return
	}

	var req authsdk.StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s, err := h.Fleet.UpdateStopStatus(ctx, orgID, httpx.UserIDFromContext(ctx), missionID, stopID,
		domain.StopStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStop(s))
}

// HandleDeleteMission handles DELETE /v1/organizations/{id}/missions/{missionID}
//
//	@Summary		Delete a mission
//	@Description	Admins and dispatchers only. Undelivered items go back to pending.
//	@Tags			Fleet
//	@Security		BearerAuth
//	@Param			id			path	string	true	"Organization ID"
//	@Param			missionID	path	string	true	"Mission ID"
//	@Success		204
//	@Failure		403	{object}	authsdk.ErrorResponse	"Role may not plan the fleet"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Mission not found"
//	@Router			/v1/organizations/{id}/missions/{missionID} [delete].
func (h *FleetHandler) HandleDeleteMission(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "missionID", service.ErrMissionNotFound, h.Fleet.DeleteMission)
}

func (h *FleetHandler) remove(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	notFound error,
	del func(ctx context.Context, orgID, actorID, id string) error,
) {
	ctx := r.Context()
	orgID, ok := pathID(w, r, "id", service.ErrOrganizationNotFound)
	if !ok {
		return
	}
	id, ok := pathID(w, r, name, notFound)
	if !ok {
		return
	}

	if err := del(ctx, orgID, httpx.UserIDFromContext(ctx), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fromPoint(p *authsdk.Point) *domain.Point {
	if p == nil {
		return nil
	}
	return &domain.Point{Lat: p.Lat, Lng: p.Lng}
}

func toPoint(p *domain.Point) *authsdk.Point {
	if p == nil {
		return nil
	}
	return &authsdk.Point{Lat: p.Lat, Lng: p.Lng}
}

func toVehicle(v domain.Vehicle) authsdk.Vehicle {
	return authsdk.Vehicle{
		ID:               v.ID,
		OrgID:            v.OrgID,
		Name:             v.Name,
		VehicleType:      v.Type,
		Identifier:       v.Identifier,
		Capacity:         v.Capacity,
		CapacityWeightKg: v.CapacityWeightKg,
		CapacityVolumeM3: v.CapacityVolumeM3,
		FuelType:         v.FuelType,
		RangeKm:          v.RangeKm,
		Icon:             v.Icon,
		Color:            v.Color,
		Status:           string(v.Status),
		Position:         toPoint(v.Position),
		PositionAt:       v.PositionAt,
		CreatedAt:        v.CreatedAt,
	}
}

func toSite(s domain.Site) authsdk.Site {
	return authsdk.Site{
		ID:                 s.ID,
		OrgID:              s.OrgID,
		Name:               s.Name,
		SiteType:           s.Type,
		Address:            s.Address,
		Location:           authsdk.Point{Lat: s.Location.Lat, Lng: s.Location.Lng},
		CapacityItemsCount: s.CapacityItems,
		CreatedAt:          s.CreatedAt,
	}
}

func toItem(i domain.Item) authsdk.Item {
	return authsdk.Item{
		ID:            i.ID,
		OrgID:         i.OrgID,
		Name:          i.Name,
		ItemType:      i.Type,
		Priority:      string(i.Priority),
		Description:   i.Description,
		PickupSiteID:  i.PickupSiteID,
		DropoffSiteID: i.DropoffSiteID,
		Status:        string(i.Status),
		CreatedAt:     i.CreatedAt,
	}
}

func toStop(s domain.Stop) authsdk.MissionStop {
	ids := s.ItemIDs
	if ids == nil {
		ids = []string{}
	}
	return authsdk.MissionStop{
		ID:         s.ID,
		SiteID:     s.SiteID,
		Order:      s.Order,
		Type:       string(s.Type),
		ItemIDs:    ids,
		Status:     string(s.Status),
		ArrivedAt:  s.ArrivedAt,
		DepartedAt: s.DepartedAt,
	}
}

func toMission(m domain.Mission) authsdk.Mission {
	out := authsdk.Mission{
		ID:              m.ID,
		OrgID:           m.OrgID,
		Name:            m.Name,
		Description:     m.Description,
		VehicleID:       m.VehicleID,
		RouteType:       string(m.RouteType),
		PlannedDate:     m.PlannedDate.Format(authsdk.DateLayout),
		PlannedStart:    m.PlannedStart,
		Status:          string(m.Status),
		AssignedItemIDs: m.ItemIDs,
		Stops:           make([]authsdk.MissionStop, 0, len(m.Stops)),
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		CreatedAt:       m.CreatedAt,
	}
	if out.AssignedItemIDs == nil {
		out.AssignedItemIDs = []string{}
	}
	for _, s := range m.Stops {
		out.Stops = append(out.Stops, toStop(s))
	}
	return out
}
