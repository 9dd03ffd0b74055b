package http

import (
	"net/http"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/internal/gateway/service"
	"github.com/aussiebroadwan/fleetdesk/pkg/authsdk"
	"github.com/aussiebroadwan/fleetdesk/pkg/httpx"
)

// OrganizationHandler manages organizations and their members.
type OrganizationHandler struct {
	Members *service.MembershipService
}

// HandleCreate handles POST /v1/organizations
//
//	@Summary		Create an organization
//	@Description	Creates an organization owned by the caller, who joins it as admin.
//	@Tags			Organizations
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateOrganizationRequest	true	"Organization name"
//	@Success		201		{object}	authsdk.Organization
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Router			/v1/organizations [post].
func (h *OrganizationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.CreateOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	org, err := h.Members.CreateOrganization(ctx, httpx.UserIDFromContext(ctx), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.Organization{
		ID:        org.ID,
		Name:      org.Name,
		OwnerID:   org.OwnerID,
		CreatedAt: org.CreatedAt,
	})
}

// HandleInvite handles POST /v1/organizations/{id}/invitations
//
//	@Summary		Invite a member
//	@Description	Mails an invitation link to /auth/accept-invitation. Owners, admins and managers may invite; only owners may grant the admin role.
//	@Tags			Organizations
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Organization ID"
//	@Param			request	body		authsdk.InviteRequest	true	"Invitee"
//	@Success		201		{object}	authsdk.Invitation
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid email or role"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Not allowed to manage this organization"
//	@Failure		404		{object}	authsdk.ErrorResponse	"Organization not found"
//	@Router			/v1/organizations/{id}/invitations [post].
func (h *OrganizationHandler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req authsdk.InviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	inv, err := h.Members.Invite(ctx, service.InviteParams{
		OrgID:     orgID,
		InviterID: httpx.UserIDFromContext(ctx),
		Email:     req.Email,
		Role:      domain.Role(req.Role),
		OrgRole:   domain.OrgRole(req.OrgRole),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.Invitation{
		ID:        inv.ID,
		OrgID:     inv.OrgID,
		Email:     inv.Email,
		Role:      string(inv.Role),
		OrgRole:   string(inv.OrgRole),
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt,
	})
}

// HandleListMembers handles GET /v1/organizations/{id}/members
//
//	@Summary		List members
//	@Tags			Organizations
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Organization ID"
//	@Success		200	{object}	authsdk.MembersResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Not a member"
//	@Router			/v1/organizations/{id}/members [get].
func (h *OrganizationHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	members, err := h.Members.ListMembers(ctx, orgID, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.MembersResponse{Members: make([]authsdk.Member, 0, len(members))}
	for _, m := range members {
		out.Members = append(out.Members, toMember(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleUpdateMember handles PUT /v1/organizations/{id}/members/{userID}
//
//	@Summary		Change a member's role
//	@Tags			Organizations
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Organization ID"
//	@Param			userID	path		string						true	"Member user ID"
//	@Param			request	body		authsdk.UpdateMemberRequest	true	"New role"
//	@Success		200		{object}	authsdk.Member
//	@Failure		400		{object}	authsdk.ErrorResponse	"Unknown role"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing session"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Not allowed to manage this organization"
//	@Failure		404		{object}	authsdk.ErrorResponse	"Member not found"
//	@Router			/v1/organizations/{id}/members/{userID} [put].
func (h *OrganizationHandler) HandleUpdateMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req authsdk.UpdateMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	m, err := h.Members.UpdateMemberRole(ctx,
		orgID, httpx.UserIDFromContext(ctx), r.PathValue("userID"), domain.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMember(m))
}

func (h *OrganizationHandler) orgID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return pathID(w, r, "id", service.ErrOrganizationNotFound)
}

func toMember(m domain.Membership) authsdk.Member {
	return authsdk.Member{
		UserID:   m.UserID,
		Email:    m.Email,
		Role:     string(m.Role),
		OrgRole:  string(m.OrgRole),
		Approved: m.Approved,
	}
}
