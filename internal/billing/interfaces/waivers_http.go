package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"busway-cloud/internal/audit"
	"busway-cloud/internal/auth"
	"busway-cloud/internal/billing/application"
	billing "busway-cloud/internal/billing/domain"
)

// WaiversHandler serves the waiver workflow endpoints.
type WaiversHandler struct {
	waivers     *application.WaiverService
	auditLogger audit.Logger
}

// NewWaiversHandler constructs a WaiversHandler.
func NewWaiversHandler(waivers *application.WaiverService, auditLogger audit.Logger) (*WaiversHandler, error) {
	if waivers == nil {
		return nil, errors.New("waivers handler: nil waiver service")
	}
	return &WaiversHandler{waivers: waivers, auditLogger: auditLogger}, nil
}

// ServeHTTP routes waiver requests.
func (h *WaiversHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/waivers" {
		switch r.Method {
		case http.MethodPost:
			h.handleRequest(w, r)
		case http.MethodGet:
			h.handleListPending(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/waivers/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	waiverID := parts[0]
	switch parts[1] {
	case "approve":
		h.handleDecision(w, r, waiverID, true)
	case "reject":
		h.handleDecision(w, r, waiverID, false)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *WaiversHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DueID  string `json:"due_id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DueID == "" {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	waiver, err := h.waivers.Request(r.Context(), req.DueID, auth.CallerParentID(r.Context()), req.Reason)
	if err != nil {
		if errors.Is(err, billing.ErrDueNotFound) || isDomainError(err) {
			respondDomainError(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, waiverView(waiver))
	h.logAudit(r, "waivers.request", waiver.ID, map[string]any{"due_id": req.DueID})
}

func (h *WaiversHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.waivers.ListPending(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(pending))
	for _, waiver := range pending {
		views = append(views, waiverView(waiver))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *WaiversHandler) handleDecision(w http.ResponseWriter, r *http.Request, waiverID string, approve bool) {
	decidedBy := auth.UserIDFromContext(r.Context())
	var err error
	action := "waivers.reject"
	if approve {
		action = "waivers.approve"
		err = h.waivers.Approve(r.Context(), waiverID, decidedBy)
	} else {
		err = h.waivers.Reject(r.Context(), waiverID, decidedBy)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "decided"})
	h.logAudit(r, action, waiverID, nil)
}

func waiverView(waiver *billing.WaiverRequest) map[string]any {
	view := map[string]any{
		"id":           waiver.ID,
		"due_id":       waiver.DueID,
		"requested_by": waiver.RequestedBy,
		"reason":       waiver.Reason,
		"status":       string(waiver.Status),
		"created_at":   waiver.CreatedAt.Format(time.RFC3339),
	}
	if waiver.DecidedBy != "" {
		view["decided_by"] = waiver.DecidedBy
		view["decided_at"] = waiver.DecidedAt.Format(time.RFC3339)
	}
	return view
}

func isDomainError(err error) bool {
	return errors.Is(err, billing.ErrInvalidState) ||
		errors.Is(err, billing.ErrAlreadyCaptured) ||
		errors.Is(err, billing.ErrWaiverNotFound)
}

func (h *WaiversHandler) logAudit(r *http.Request, action, waiverID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "waivers",
		ResourceID:   waiverID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
