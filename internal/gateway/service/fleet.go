package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/store"
	"github.com/aussiebroadwan/fleetdesk/pkg/idx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
)

// Defaults for vehicles created without a map marker.
const (
	DefaultVehicleIcon  = "truck"
	DefaultVehicleColor = "#3b82f6"
)

// FleetService manages an organization's Map Builder entities: vehicles,
// sites, items and the missions that tie them together.
//
// Any approved member may read. Admins and dispatchers plan; drivers may
// additionally move vehicles and advance missions.
type FleetService struct {
	Store store.Store

	Now func() time.Time
}

func (s *FleetService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *FleetService) viewer(ctx context.Context, orgID, userID string) error {
	_, err := approvedMember(ctx, s.Store, orgID, userID)
	return err
}

func (s *FleetService) planner(ctx context.Context, orgID, userID string) error {
	m, err := approvedMember(ctx, s.Store, orgID, userID)
	if err != nil {
		return err
	}
	if !m.Role.CanPlanFleet() {
		return ErrForbidden.WithMessage("role may not plan the fleet")
	}
	return nil
}

func (s *FleetService) operator(ctx context.Context, orgID, userID string) error {
	m, err := approvedMember(ctx, s.Store, orgID, userID)
	if err != nil {
		return err
	}
	if !m.Role.CanOperateFleet() {
		return ErrForbidden.WithMessage("role may not operate the fleet")
	}
	return nil
}

// mapStoreErr turns store sentinels into API errors. notFound is the error
// for the entity the caller addressed.
func mapStoreErr(err error, notFound error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrInUse):
		return ErrInUse
	}
	return err
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrValidation.WithMessage(field + " is required")
	}
	return v, nil
}

func checkPoint(p *domain.Point) error {
	if p == nil {
		return nil
	}
	if err := p.Validate(); err != nil {
		return ErrValidation.WithMessage(err.Error())
	}
	return nil
}

// VehicleParams are the inputs of CreateVehicle.
type VehicleParams struct {
	Name             string
	Type             string
	Identifier       string
	Capacity         int
	CapacityWeightKg float64
	CapacityVolumeM3 float64
	FuelType         string
	RangeKm          float64
	Icon             string
	Color            string
	Position         *domain.Point
}

func (s *FleetService) ListVehicles(ctx context.Context, orgID, actorID string) ([]domain.Vehicle, error) {
	if err := s.viewer(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.Store.Vehicles().ListVehicles(ctx, orgID)
}

func (s *FleetService) CreateVehicle(ctx context.Context, orgID, actorID string, p VehicleParams) (domain.Vehicle, error) {
	name, err := required("name", p.Name)
	if err != nil {
		return domain.Vehicle{}, err
	}
	vtype, err := required("vehicle type", p.Type)
	if err != nil {
		return domain.Vehicle{}, err
	}
	if p.Capacity < 0 || p.CapacityWeightKg < 0 || p.CapacityVolumeM3 < 0 || p.RangeKm < 0 {
		return domain.Vehicle{}, ErrValidation.WithMessage("capacities cannot be negative")
	}
	if err := checkPoint(p.Position); err != nil {
		return domain.Vehicle{}, err
	}
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return domain.Vehicle{}, err
	}

	now := s.now()
	v := domain.Vehicle{
		ID:               idx.NewAt(now).String(),
		OrgID:            orgID,
		Name:             name,
		Type:             vtype,
		Identifier:       strings.TrimSpace(p.Identifier),
		Capacity:         p.Capacity,
		CapacityWeightKg: p.CapacityWeightKg,
		CapacityVolumeM3: p.CapacityVolumeM3,
		FuelType:         strings.TrimSpace(p.FuelType),
		RangeKm:          p.RangeKm,
		Icon:             cmp.Or(strings.TrimSpace(p.Icon), DefaultVehicleIcon),
		Color:            cmp.Or(strings.TrimSpace(p.Color), DefaultVehicleColor),
		Status:           domain.VehicleActive,
		Position:         p.Position,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.Position != nil {
		v.PositionAt = &now
	}
	if err := s.Store.Vehicles().CreateVehicle(ctx, v); err != nil {
		return domain.Vehicle{}, fmt.Errorf("create vehicle: %w", err)
	}

	slogx.FromContext(ctx).Info("vehicle created", slog.String("org_id", orgID), slog.String("vehicle_id", v.ID))
	return v, nil
}

// UpdateVehiclePosition records where a vehicle is now.
func (s *FleetService) UpdateVehiclePosition(ctx context.Context, orgID, actorID, vehicleID string, p domain.Point) (domain.Vehicle, error) {
	if err := checkPoint(&p); err != nil {
		return domain.Vehicle{}, err
	}
	if err := s.operator(ctx, orgID, actorID); err != nil {
		return domain.Vehicle{}, err
	}

	if err := s.Store.Vehicles().UpdateVehiclePosition(ctx, orgID, vehicleID, p, s.now()); err != nil {
		return domain.Vehicle{}, mapStoreErr(err, ErrVehicleNotFound)
	}
	v, err := s.Store.Vehicles().GetVehicle(ctx, orgID, vehicleID)
	return v, mapStoreErr(err, ErrVehicleNotFound)
}

func (s *FleetService) DeleteVehicle(ctx context.Context, orgID, actorID, vehicleID string) error {
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return err
	}
	if err := s.Store.Vehicles().DeleteVehicle(ctx, orgID, vehicleID); err != nil {
		return mapStoreErr(err, ErrVehicleNotFound)
	}
	slogx.FromContext(ctx).Info("vehicle deleted", slog.String("org_id", orgID), slog.String("vehicle_id", vehicleID))
	return nil
}

// SiteParams are the inputs of CreateSite. A nil Location pins the site at
// domain.DefaultSiteLocation.
type SiteParams struct {
	Name          string
	Type          string
	Address       string
	Location      *domain.Point
	CapacityItems int
}

func (s *FleetService) ListSites(ctx context.Context, orgID, actorID string) ([]domain.Site, error) {
	if err := s.viewer(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.Store.Sites().ListSites(ctx, orgID)
}

func (s *FleetService) CreateSite(ctx context.Context, orgID, actorID string, p SiteParams) (domain.Site, error) {
	name, err := required("name", p.Name)
	if err != nil {
		return domain.Site{}, err
	}
	stype, err := required("site type", p.Type)
	if err != nil {
		return domain.Site{}, err
	}
	if p.CapacityItems < 0 {
		return domain.Site{}, ErrValidation.WithMessage("capacity cannot be negative")
	}
	if err := checkPoint(p.Location); err != nil {
		return domain.Site{}, err
	}
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return domain.Site{}, err
	}

	loc := domain.DefaultSiteLocation
	if p.Location != nil {
		loc = *p.Location
	}
	now := s.now()
	site := domain.Site{
		ID:            idx.NewAt(now).String(),
		OrgID:         orgID,
		Name:          name,
		Type:          stype,
		Address:       strings.TrimSpace(p.Address),
		Location:      loc,
		CapacityItems: p.CapacityItems,
		CreatedAt:     now,
	}
	if err := s.Store.Sites().CreateSite(ctx, site); err != nil {
		return domain.Site{}, fmt.Errorf("create site: %w", err)
	}

	slogx.FromContext(ctx).Info("site created", slog.String("org_id", orgID), slog.String("site_id", site.ID))
	return site, nil
}

// SiteDetails is a site with the items picked up or dropped there.
type SiteDetails struct {
	Site  domain.Site
	Items []domain.Item
}

func (s *FleetService) GetSiteDetails(ctx context.Context, orgID, actorID, siteID string) (SiteDetails, error) {
	if err := s.viewer(ctx, orgID, actorID); err != nil {
		return SiteDetails{}, err
	}
	site, err := s.Store.Sites().GetSite(ctx, orgID, siteID)
	if err != nil {
		return SiteDetails{}, mapStoreErr(err, ErrSiteNotFound)
	}
	items, err := s.Store.Items().ListItemsAtSite(ctx, orgID, siteID)
	if err != nil {
		return SiteDetails{}, err
	}
	return SiteDetails{Site: site, Items: items}, nil
}

func (s *FleetService) DeleteSite(ctx context.Context, orgID, actorID, siteID string) error {
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return err
	}
	if err := s.Store.Sites().DeleteSite(ctx, orgID, siteID); err != nil {
		return mapStoreErr(err, ErrSiteNotFound)
	}
	slogx.FromContext(ctx).Info("site deleted", slog.String("org_id", orgID), slog.String("site_id", siteID))
	return nil
}

// ItemParams are the inputs of CreateItem.
type ItemParams struct {
	Name         string
	Type         string
	Priority     string
	Description  string
	PickupSiteID string
}

func (s *FleetService) ListItems(ctx context.Context, orgID, actorID string) ([]domain.Item, error) {
	if err := s.viewer(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.Store.Items().ListItems(ctx, orgID)
}

func (s *FleetService) CreateItem(ctx context.Context, orgID, actorID string, p ItemParams) (domain.Item, error) {
	name, err := required("name", p.Name)
	if err != nil {
		return domain.Item{}, err
	}
	itype, err := required("item type", p.Type)
	if err != nil {
		return domain.Item{}, err
	}
	priority, err := domain.ParseItemPriority(p.Priority)
	if err != nil {
		return domain.Item{}, ErrValidation.WithMessage(err.Error())
	}
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return domain.Item{}, err
	}

	pickup := strings.TrimSpace(p.PickupSiteID)
	if pickup != "" {
		if _, err := s.Store.Sites().GetSite(ctx, orgID, pickup); err != nil {
			return domain.Item{}, mapStoreErr(err, ErrSiteNotFound)
		}
	}

	now := s.now()
	item := domain.Item{
		ID:           idx.NewAt(now).String(),
		OrgID:        orgID,
		Name:         name,
		Type:         itype,
		Priority:     priority,
		Description:  strings.TrimSpace(p.Description),
		PickupSiteID: pickup,
		Status:       domain.ItemPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Items().CreateItem(ctx, item); err != nil {
		return domain.Item{}, fmt.Errorf("create item: %w", err)
	}

	slogx.FromContext(ctx).Info("item created", slog.String("org_id", orgID), slog.String("item_id", item.ID))
	return item, nil
}

func (s *FleetService) DeleteItem(ctx context.Context, orgID, actorID, itemID string) error {
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return err
	}
	if err := s.Store.Items().DeleteItem(ctx, orgID, itemID); err != nil {
		return mapStoreErr(err, ErrItemNotFound)
	}
	slogx.FromContext(ctx).Info("item deleted", slog.String("org_id", orgID), slog.String("item_id", itemID))
	return nil
}

// StopParams describe one stop of a new mission. A zero Order takes the
// stop's position in the list.
type StopParams struct {
	SiteID  string
	Order   int
	Type    string
	ItemIDs []string
}

// MissionParams are the inputs of CreateMission. ItemIDs defaults to every
// item named by a stop.
type MissionParams struct {
	Name         string
	Description  string
	VehicleID    string
	RouteType    string
	PlannedDate  time.Time
	PlannedStart *time.Time
	Stops        []StopParams
	ItemIDs      []string
}

func (s *FleetService) ListMissions(ctx context.Context, orgID, actorID string) ([]domain.Mission, error) {
	if err := s.viewer(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.Store.Missions().ListMissions(ctx, orgID)
}

func (s *FleetService) GetMission(ctx context.Context, orgID, actorID, missionID string) (domain.Mission, error) {
	if err := s.viewer(ctx, orgID, actorID); err != nil {
		return domain.Mission{}, err
	}
	m, err := s.Store.Missions().GetMission(ctx, orgID, missionID)
	return m, mapStoreErr(err, ErrMissionNotFound)
}

// CreateMission plans a mission. Its items become assigned and take the
// site of the first dropoff stop as their destination.
func (s *FleetService) CreateMission(ctx context.Context, orgID, actorID string, p MissionParams) (domain.Mission, error) {
	m, err := s.buildMission(orgID, p)
	if err != nil {
		return domain.Mission{}, err
	}
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return domain.Mission{}, err
	}

	if _, err := s.Store.Vehicles().GetVehicle(ctx, orgID, m.VehicleID); err != nil {
		return domain.Mission{}, mapStoreErr(err, ErrVehicleNotFound)
	}
	for _, st := range m.Stops {
		if _, err := s.Store.Sites().GetSite(ctx, orgID, st.SiteID); err != nil {
			return domain.Mission{}, mapStoreErr(err, ErrSiteNotFound)
		}
	}
	for _, id := range m.ItemIDs {
		if _, err := s.Store.Items().GetItem(ctx, orgID, id); err != nil {
			return domain.Mission{}, mapStoreErr(err, ErrItemNotFound)
		}
	}

	dropoff, hasDropoff := m.DropoffSite()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Missions().CreateMission(ctx, m); err != nil {
			return fmt.Errorf("create mission: %w", err)
		}
		return tx.Items().AssignItems(ctx, orgID, m.ItemIDs, domain.ItemAssigned, dropoff)
	})
	if err != nil {
		return domain.Mission{}, err
	}

	log := slogx.FromContext(ctx)
	if !hasDropoff && len(m.ItemIDs) > 0 {
		log.Warn("mission has items but no dropoff stop", slog.String("mission_id", m.ID))
	}
	log.Info("mission created",
		slog.String("org_id", orgID), slog.String("mission_id", m.ID), slog.Int("stops", len(m.Stops)))
	return m, nil
}

func (s *FleetService) buildMission(orgID string, p MissionParams) (domain.Mission, error) {
	name, err := required("name", p.Name)
	if err != nil {
		return domain.Mission{}, err
	}
	vehicleID, err := required("vehicle", p.VehicleID)
	if err != nil {
		return domain.Mission{}, err
	}
	routeType, err := domain.ParseRouteType(p.RouteType)
	if err != nil {
		return domain.Mission{}, ErrValidation.WithMessage(err.Error())
	}
	if p.PlannedDate.IsZero() {
		return domain.Mission{}, ErrValidation.WithMessage("planned date is required")
	}

	now := s.now()
	m := domain.Mission{
		ID:           idx.NewAt(now).String(),
		OrgID:        orgID,
		Name:         name,
		Description:  strings.TrimSpace(p.Description),
		VehicleID:    vehicleID,
		RouteType:    routeType,
		PlannedDate:  p.PlannedDate.UTC(),
		PlannedStart: p.PlannedStart,
		Status:       domain.MissionPlanned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	carried := dedupe(p.ItemIDs)
	onStops := map[string]struct{}{}
	orders := map[int]struct{}{}
	for i, sp := range p.Stops {
		siteID, err := required("stop site", sp.SiteID)
		if err != nil {
			return domain.Mission{}, err
		}
		stype, err := domain.ParseStopType(sp.Type)
		if err != nil {
			return domain.Mission{}, ErrValidation.WithMessage(err.Error())
		}
		order := sp.Order
		if order == 0 {
			order = i + 1
		}
		if _, dup := orders[order]; dup {
			return domain.Mission{}, ErrValidation.WithMessage(fmt.Sprintf("two stops share order %d", order))
		}
		orders[order] = struct{}{}

		itemIDs := dedupe(sp.ItemIDs)
		for _, id := range itemIDs {
			onStops[id] = struct{}{}
		}
		m.Stops = append(m.Stops, domain.Stop{
			ID:        idx.NewAt(now).String(),
			MissionID: m.ID,
			SiteID:    siteID,
			Order:     order,
			Type:      stype,
			ItemIDs:   itemIDs,
			Status:    domain.StopPending,
		})
	}
	m.SortStops()

	if len(carried) == 0 {
		for _, st := range m.Stops {
			carried = append(carried, st.ItemIDs...)
		}
		carried = dedupe(carried)
	} else {
		set := make(map[string]struct{}, len(carried))
		for _, id := range carried {
			set[id] = struct{}{}
		}
		for id := range onStops {
			if _, ok := set[id]; !ok {
				return domain.Mission{}, ErrValidation.WithMessage("stop item " + id + " is not carried by the mission")
			}
		}
	}
	m.ItemIDs = carried
	return m, nil
}

// UpdateMissionStatus moves a mission along. Starting stamps the start
// time, completing stamps the end time, and the carried items follow:
// in transit, delivered, or back to pending when cancelled.
func (s *FleetService) UpdateMissionStatus(ctx context.Context, orgID, actorID, missionID string, status domain.MissionStatus) (domain.Mission, error) {
	status, err := domain.ParseMissionStatus(string(status))
	if err != nil {
		return domain.Mission{}, ErrValidation.WithMessage(err.Error())
	}
	if err := s.operator(ctx, orgID, actorID); err != nil {
		return domain.Mission{}, err
	}

	now := s.now()
	var out domain.Mission
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.Missions().GetMission(ctx, orgID, missionID)
		if err != nil {
			return mapStoreErr(err, ErrMissionNotFound)
		}
		if m.Status == domain.MissionCompleted || m.Status == domain.MissionCancelled {
			return ErrMissionClosed
		}

		var started, ended *time.Time
		switch status {
		case domain.MissionInProgress:
			if m.StartedAt == nil {
				started = &now
			}
		case domain.MissionCompleted:
			ended = &now
		}
		if err := tx.Missions().UpdateMissionStatus(ctx, orgID, missionID, status, started, ended); err != nil {
			return err
		}
		if itemStatus, ok := status.ItemStatus(); ok {
			if err := tx.Items().AssignItems(ctx, orgID, m.ItemIDs, itemStatus, ""); err != nil {
				return fmt.Errorf("update items: %w", err)
			}
		}

		out, err = tx.Missions().GetMission(ctx, orgID, missionID)
		return err
	})
	if err != nil {
		return domain.Mission{}, err
	}

	slogx.FromContext(ctx).Info("mission status updated",
		slog.String("mission_id", missionID), slog.String("status", string(status)))
	return out, nil
}

// UpdateStopStatus records progress at one stop. Arriving stamps the
// arrival time and completing stamps the departure time.
func (s *FleetService) UpdateStopStatus(ctx context.Context, orgID, actorID, missionID, stopID string, status domain.StopStatus) (domain.Stop, error) {
	status, err := domain.ParseStopStatus(string(status))
	if err != nil {
		return domain.Stop{}, ErrValidation.WithMessage(err.Error())
	}
	if err := s.operator(ctx, orgID, actorID); err != nil {
		return domain.Stop{}, err
	}

	m, err := s.Store.Missions().GetMission(ctx, orgID, missionID)
	if err != nil {
		return domain.Stop{}, mapStoreErr(err, ErrMissionNotFound)
	}
	stop, ok := m.Stop(stopID)
	if !ok {
		return domain.Stop{}, ErrStopNotFound
	}

	now := s.now()
	var arrived, departed *time.Time
	switch status {
	case domain.StopArrived:
		arrived = &now
	case domain.StopCompleted:
		departed = &now
	}
	if err := s.Store.Missions().UpdateStopStatus(ctx, missionID, stopID, status, arrived, departed); err != nil {
		return domain.Stop{}, mapStoreErr(err, ErrStopNotFound)
	}

	stop.Status = status
	if arrived != nil {
		stop.ArrivedAt = arrived
	}
	if departed != nil {
		stop.DepartedAt = departed
	}
	return stop, nil
}

// DeleteMission removes a mission. Items it carried that were not
// delivered go back to pending.
func (s *FleetService) DeleteMission(ctx context.Context, orgID, actorID, missionID string) error {
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.Missions().GetMission(ctx, orgID, missionID)
		if err != nil {
			return mapStoreErr(err, ErrMissionNotFound)
		}
		if err := tx.Missions().DeleteMission(ctx, orgID, missionID); err != nil {
			return mapStoreErr(err, ErrMissionNotFound)
		}
		if m.Status == domain.MissionCompleted {
			return nil
		}
		return tx.Items().AssignItems(ctx, orgID, m.ItemIDs, domain.ItemPending, "")
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("mission deleted", slog.String("org_id", orgID), slog.String("mission_id", missionID))
	return nil
}

// RepairResult counts the outcome of RepairDropoffs.
type RepairResult struct {
	Fixed  int
	Failed int
}

// RepairDropoffs gives assigned and in-transit items without a destination
// the first dropoff site of the newest mission carrying them. Items with no
// such mission, or whose mission has no dropoff stop, count as failed.
func (s *FleetService) RepairDropoffs(ctx context.Context, orgID, actorID string) (RepairResult, error) {
	if err := s.planner(ctx, orgID, actorID); err != nil {
		return RepairResult{}, err
	}
	log := slogx.FromContext(ctx)

	items, err := s.Store.Items().ListItemsMissingDropoff(ctx, orgID)
	if err != nil {
		return RepairResult{}, err
	}

	var res RepairResult
	for _, item := range items {
		missions, err := s.Store.Missions().ListMissionsWithItem(ctx, orgID, item.ID)
		if err != nil {
			return res, err
		}
		if len(missions) == 0 {
			log.Warn("item is on no mission", slog.String("item_id", item.ID))
			res.Failed++
			continue
		}
		site, ok := missions[0].DropoffSite()
		if !ok {
			log.Warn("mission has no dropoff stop",
				slog.String("item_id", item.ID), slog.String("mission_id", missions[0].ID))
			res.Failed++
			continue
		}
		if err := s.Store.Items().SetItemDropoff(ctx, orgID, item.ID, site); err != nil {
			log.Error("set item dropoff", slog.String("item_id", item.ID), "error", err)
			res.Failed++
			continue
		}
		res.Fixed++
	}

	log.Info("item dropoffs repaired",
		slog.String("org_id", orgID), slog.Int("fixed", res.Fixed), slog.Int("failed", res.Failed))
	return res, nil
}

func dedupe(ids []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
