package web

import (
	"net/http"
	"time"

	"github.com/louisbranch/teamspace/internal/platform/requestctx"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
)

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Domain    string    `json:"domain,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toTenantResponse(tenant domain.Tenant) tenantResponse {
	return tenantResponse{
		ID:        tenant.ID,
		Name:      tenant.Name,
		Slug:      tenant.Slug,
		Domain:    tenant.Domain,
		Status:    string(tenant.Status),
		CreatedAt: tenant.CreatedAt,
	}
}

type membershipResponse struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenant_id"`
	UserID   string     `json:"user_id"`
	Role     string     `json:"role"`
	Pending  bool       `json:"pending"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
}

func toMembershipResponse(membership domain.Membership) membershipResponse {
	return membershipResponse{
		ID:       membership.ID,
		TenantID: membership.TenantID,
		UserID:   membership.UserID,
		Role:     string(membership.Role),
		Pending:  membership.Pending(),
		JoinedAt: membership.JoinedAt,
	}
}

func toMembershipResponses(memberships []domain.Membership) []membershipResponse {
	payload := make([]membershipResponse, 0, len(memberships))
	for _, membership := range memberships {
		payload = append(payload, toMembershipResponse(membership))
	}
	return payload
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string `json:"name"`
		Slug   string `json:"slug"`
		Domain string `json:"domain"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	tenant, err := s.tenants.CreateTenant(r.Context(), userID, domain.CreateTenantInput{
		Name:   body.Name,
		Slug:   body.Slug,
		Domain: body.Domain,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	memberships, err := s.tenants.ListTenantsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponses(memberships))
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	tenant, err := s.tenants.GetTenant(r.Context(), userID, r.PathValue("tenantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

func (s *Server) handleGetTenantBySlug(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenants.GetTenantBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if err := s.tenants.DeleteTenant(r.Context(), userID, r.PathValue("tenantID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuspendTenant(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if err := s.tenants.SuspendTenant(r.Context(), userID, r.PathValue("tenantID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResumeTenant(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if err := s.tenants.ResumeTenant(r.Context(), userID, r.PathValue("tenantID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	members, err := s.tenants.ListMembers(r.Context(), userID, r.PathValue("tenantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponses(members))
}

type invitationResponse struct {
	Membership membershipResponse `json:"membership"`
	Grant      string             `json:"grant"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

func (s *Server) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	role, err := domain.ParseRole(body.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	invitation, err := s.tenants.InviteMember(r.Context(), userID, r.PathValue("tenantID"), body.Email, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invitationResponse{
		Membership: toMembershipResponse(invitation.Membership),
		Grant:      invitation.Grant,
		ExpiresAt:  invitation.ExpiresAt,
	})
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Grant string `json:"grant"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	membership, err := s.tenants.AcceptInvite(r.Context(), userID, body.Grant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(membership))
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	role, err := domain.ParseRole(body.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	requesterID := requestctx.UserIDFromContext(r.Context())
	membership, err := s.tenants.UpdateMemberRole(r.Context(), requesterID, r.PathValue("tenantID"), r.PathValue("userID"), role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipResponse(membership))
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	requesterID := requestctx.UserIDFromContext(r.Context())
	if err := s.tenants.RemoveMember(r.Context(), requesterID, r.PathValue("tenantID"), r.PathValue("userID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewOwnerUserID string `json:"new_owner_user_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	requesterID := requestctx.UserIDFromContext(r.Context())
	if err := s.tenants.TransferOwnership(r.Context(), requesterID, r.PathValue("tenantID"), body.NewOwnerUserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
