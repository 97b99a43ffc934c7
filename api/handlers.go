/*
handlers.go - HTTP API handlers for the payment plan engine

PURPOSE:
  Exposes the plan engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Cases:
    POST   /api/cases/{caseID}/calculate   Preview a schedule (not persisted)
    GET    /api/cases/{caseID}/versions    List versions for a case
    POST   /api/cases/{caseID}/versions    Calculate and persist a new Draft
    POST   /api/cases/{caseID}/invalidate  Broadcast an invalidation signal

  Versions:
    GET    /api/versions/{id}              Get a version with its rows
    POST   /api/versions/{id}/recalculate  Regenerate Scheduled rows
    POST   /api/versions/{id}/activate     Draft -> Active
    POST   /api/versions/{id}/suspend      Active -> new Suspended version
    POST   /api/versions/{id}/primary      Make primary for its case
    DELETE /api/versions/{id}              Delete (non-primary Draft/Archived)
    PUT    /api/versions/{id}/items        Replace rows after grid edits

  Items:
    POST   /api/items/{itemID}/status      Change one row's status
    GET    /api/items/{itemID}/wire-fees   List ancillary fees
    POST   /api/items/{itemID}/wire-fees   Attach an ancillary fee

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, illegal transitions' inputs
  - 404: Version or item not found
  - 409: Invalid transition, primary/persistence conflicts
  - 503: Required policy configuration unavailable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - plan/version.go: The lifecycle operations these delegate to
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/plan-engine/plan"
	"github.com/warp/plan-engine/policy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Versions plan.VersionStore
	WireFees plan.WireFeeStore
	Policies policy.Source
	Log      *logrus.Logger

	// Publish broadcasts case invalidations to other nodes. Optional.
	Publish func(ctx context.Context, caseID plan.CaseID) error
}

// NewHandler creates a new handler over the given stores and policy source.
func NewHandler(versions plan.VersionStore, wireFees plan.WireFeeStore, policies policy.Source, log *logrus.Logger) *Handler {
	return &Handler{
		Versions: versions,
		WireFees: wireFees,
		Policies: policies,
		Log:      log,
	}
}

// managerFor builds a lifecycle manager bound to one program's policy.
// A missing policy surfaces as ErrConfigurationUnavailable (503), never a
// silent default.
func (h *Handler) managerFor(programType plan.ProgramType) (*plan.Manager, error) {
	pol, err := h.Policies.PolicyFor(programType)
	if err != nil {
		return nil, err
	}
	m := plan.NewManager(h.Versions, &plan.Calculator{Policy: pol})
	m.Fees = h.WireFees
	return m, nil
}

// =============================================================================
// CASE HANDLERS
// =============================================================================

// Calculate previews a schedule without persisting anything. This is the
// endpoint the grid hits on every debounced recompute.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg, totals, m, ok := h.parseCalculation(w, req)
	if !ok {
		return
	}

	items, summary, err := m.Calc.Generate(plan.CalculationInput{Config: cfg, Totals: totals})
	if err != nil {
		h.respondError(w, "Calculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CalculateResponse{
		Summary: toSummaryDTO(summary),
		Items:   toItemDTOs(items),
	})
}

// CreateVersion calculates a schedule and persists it as a new Draft.
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	caseID := plan.CaseID(chi.URLParam(r, "caseID"))

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg, totals, m, ok := h.parseCalculation(w, req)
	if !ok {
		return
	}

	v, err := m.Create(r.Context(), caseID, cfg, totals, req.CreatedBy)
	if err != nil {
		h.respondError(w, "Failed to create version", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionDTO(*v))
}

// parseCalculation converts a request into domain inputs plus a manager
// carrying the program's policy. Bounds always come from policy.
func (h *Handler) parseCalculation(w http.ResponseWriter, req CalculateRequest) (plan.PlanConfiguration, plan.CaseTotals, *plan.Manager, bool) {
	cfg, err := req.Config.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid configuration", err)
		return cfg, plan.CaseTotals{}, nil, false
	}
	totals, err := req.Totals.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid totals", err)
		return cfg, totals, nil, false
	}
	m, err := h.managerFor(cfg.ProgramType)
	if err != nil {
		h.respondError(w, "Program policy unavailable", err)
		return cfg, totals, nil, false
	}
	cfg.Bounds = m.Calc.Policy.Bounds
	return cfg, totals, m, true
}

// ListVersions returns all versions for a case, newest first.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	caseID := plan.CaseID(chi.URLParam(r, "caseID"))

	versions, err := h.Versions.ListVersions(r.Context(), caseID)
	if err != nil {
		h.respondError(w, "Failed to list versions", err)
		return
	}
	dtos := make([]VersionDTO, len(versions))
	for i, v := range versions {
		dtos[i] = toVersionDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Invalidate broadcasts that a case's versions may be stale. Other nodes
// (and this one) re-fetch on receipt.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	caseID := plan.CaseID(chi.URLParam(r, "caseID"))
	if h.Publish == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "no feed configured"})
		return
	}
	if err := h.Publish(r.Context(), caseID); err != nil {
		h.respondError(w, "Failed to publish invalidation", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

// =============================================================================
// VERSION HANDLERS
// =============================================================================

// GetVersion returns a single version with its rows.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id := plan.VersionID(chi.URLParam(r, "id"))

	v, err := h.Versions.GetVersion(r.Context(), id)
	if err != nil {
		h.respondError(w, "Failed to get version", err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(*v))
}

// versionManager loads a version and builds a manager with its program's
// policy, shared by all lifecycle handlers.
func (h *Handler) versionManager(w http.ResponseWriter, r *http.Request) (plan.VersionID, *plan.Manager, bool) {
	id := plan.VersionID(chi.URLParam(r, "id"))

	v, err := h.Versions.GetVersion(r.Context(), id)
	if err != nil {
		h.respondError(w, "Failed to get version", err)
		return id, nil, false
	}
	m, err := h.managerFor(v.Config.ProgramType)
	if err != nil {
		h.respondError(w, "Program policy unavailable", err)
		return id, nil, false
	}
	return id, m, true
}

// Recalculate regenerates the Scheduled rows of a version into a new Draft.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.versionManager(w, r)
	if !ok {
		return
	}
	next, err := m.Recalculate(r.Context(), id)
	if err != nil {
		h.respondError(w, "Failed to recalculate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionDTO(*next))
}

// Activate promotes a Draft to Active.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.versionManager(w, r)
	if !ok {
		return
	}
	v, err := m.Activate(r.Context(), id)
	if err != nil {
		h.respondError(w, "Failed to activate", err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(*v))
}

// Suspend cancels an Active version's Scheduled rows into a new Suspended
// version.
func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.versionManager(w, r)
	if !ok {
		return
	}
	next, err := m.Suspend(r.Context(), id)
	if err != nil {
		h.respondError(w, "Failed to suspend", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionDTO(*next))
}

// SetPrimary makes the version its case's single primary.
func (h *Handler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.versionManager(w, r)
	if !ok {
		return
	}
	if err := m.SetPrimary(r.Context(), id); err != nil {
		h.respondError(w, "Failed to set primary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "primary"})
}

// DeleteVersion removes a non-primary Draft or Archived version.
func (h *Handler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, m, ok := h.versionManager(w, r)
	if !ok {
		return
	}
	if err := m.Delete(r.Context(), id); err != nil {
		h.respondError(w, "Failed to delete version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveItems replaces a version's rows after grid edits.
func (h *Handler) SaveItems(w http.ResponseWriter, r *http.Request) {
	var req SaveItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	items := make([]plan.ScheduleItem, len(req.Items))
	for i, dto := range req.Items {
		it, err := dto.toDomain()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid item", err)
			return
		}
		items[i] = it
	}

	id, m, ok := h.versionManager(w, r)
	if !ok {
		return
	}
	if err := m.SaveItems(r.Context(), id, items); err != nil {
		h.respondError(w, "Failed to save items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// UpdateItemStatus changes a single row's status (e.g. posting a clearance).
func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID := plan.ItemID(chi.URLParam(r, "itemID"))

	var req ItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status := plan.ItemStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown item status", nil)
		return
	}
	if err := h.Versions.UpdateItemStatus(r.Context(), itemID, status); err != nil {
		h.respondError(w, "Failed to update item status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// AddWireFee attaches an ancillary fee to a schedule item.
func (h *Handler) AddWireFee(w http.ResponseWriter, r *http.Request) {
	itemID := plan.ItemID(chi.URLParam(r, "itemID"))

	var req WireFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fee amount", err)
		return
	}

	ledger := plan.NewWireFeeLedger(h.WireFees)
	fee, err := ledger.Attach(r.Context(), itemID, req.FeeType, amount)
	if err != nil {
		h.respondError(w, "Failed to attach wire fee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWireFeeDTO(*fee))
}

// ListWireFees returns the fees attached to one schedule item.
func (h *Handler) ListWireFees(w http.ResponseWriter, r *http.Request) {
	itemID := plan.ItemID(chi.URLParam(r, "itemID"))

	ledger := plan.NewWireFeeLedger(h.WireFees)
	fees, err := ledger.For(r.Context(), itemID)
	if err != nil {
		h.respondError(w, "Failed to list wire fees", err)
		return
	}
	dtos := make([]WireFeeDTO, len(fees))
	for i, f := range fees {
		dtos[i] = toWireFeeDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// respondError maps a domain error to its HTTP status.
func (h *Handler) respondError(w http.ResponseWriter, message string, err error) {
	switch {
	case plan.IsFatal(err):
		writeErrorCode(w, http.StatusServiceUnavailable, message, "configuration_unavailable", err)
	case plan.IsNotFound(err):
		writeErrorCode(w, http.StatusNotFound, message, "not_found", err)
	case errors.Is(err, plan.ErrInvalidTransition):
		writeErrorCode(w, http.StatusConflict, message, "invalid_transition", err)
	case plan.IsConflict(err):
		writeErrorCode(w, http.StatusConflict, message, "conflict", err)
	case plan.IsClientError(err):
		writeErrorCode(w, http.StatusBadRequest, message, "validation", err)
	default:
		h.Log.WithError(err).Error(message)
		writeErrorCode(w, http.StatusInternalServerError, message, "internal", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
