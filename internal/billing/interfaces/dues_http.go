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
	"busway-cloud/internal/observability/metrics"
)

// DuesHandler serves ledger endpoints: generation, queries and offline
// captures.
type DuesHandler struct {
	generation  *application.DueGenerationService
	queries     *application.DueQueryService
	reconcile   *application.ReconcileService
	reminders   *application.ReminderService
	auditLogger audit.Logger
}

// NewDuesHandler constructs a DuesHandler.
func NewDuesHandler(generation *application.DueGenerationService, queries *application.DueQueryService, reconcile *application.ReconcileService, reminders *application.ReminderService, auditLogger audit.Logger) (*DuesHandler, error) {
	if generation == nil {
		return nil, errors.New("dues handler: nil generation service")
	}
	if queries == nil {
		return nil, errors.New("dues handler: nil query service")
	}
	if reconcile == nil {
		return nil, errors.New("dues handler: nil reconcile service")
	}
	return &DuesHandler{
		generation:  generation,
		queries:     queries,
		reconcile:   reconcile,
		reminders:   reminders,
		auditLogger: auditLogger,
	}, nil
}

// ServeHTTP routes due requests.
func (h *DuesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/dues" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/dues/generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r)
	case r.URL.Path == "/api/v1/dues/defaulters" && r.Method == http.MethodGet:
		h.handleDefaulters(w, r)
	case r.URL.Path == "/api/v1/notifications/send-reminders" && r.Method == http.MethodPost:
		h.handleSendReminders(w, r)
	default:
		if dueID, ok := markPaidTarget(r); ok && r.Method == http.MethodPost {
			h.handleMarkPaid(w, r, dueID)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
}

func markPaidTarget(r *http.Request) (string, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/api/v1/dues/") || !strings.HasSuffix(path, "/mark-paid") {
		return "", false
	}
	dueID := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/dues/"), "/mark-paid")
	if dueID == "" || strings.Contains(dueID, "/") {
		return "", false
	}
	return dueID, true
}

// handleList returns dues for a student (parents see only their own) or a
// whole period (admins).
func (h *DuesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if studentID := query.Get("student_id"); studentID != "" {
		views, err := h.queries.ListByStudent(r.Context(), studentID, auth.CallerParentID(r.Context()))
		if err != nil {
			respondDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
		return
	}
	if periodKey := query.Get("period"); periodKey != "" {
		if auth.RoleFromContext(r.Context()) != auth.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		period, err := billing.ParsePeriod(periodKey)
		if err != nil {
			http.Error(w, "period must be YYYY-MM", http.StatusBadRequest)
			return
		}
		views, err := h.queries.ListByPeriod(r.Context(), period)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
		return
	}
	http.Error(w, "student_id or period is required", http.StatusBadRequest)
}

func (h *DuesHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period string `json:"period"`
		DueDay int    `json:"due_day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	period, err := billing.ParsePeriod(req.Period)
	if err != nil {
		http.Error(w, "period must be YYYY-MM", http.StatusBadRequest)
		return
	}

	start := time.Now()
	created, err := h.generation.Generate(r.Context(), period, req.DueDay)
	if err != nil {
		metrics.ObserveDueGenerate(metrics.ResultError, time.Since(start))
		respondDomainError(w, err)
		return
	}
	metrics.ObserveDueGenerate(metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{"period": period.String(), "created": created})
	h.logAudit(r, "dues.generate", period.String(), map[string]any{"created": created})
}

func (h *DuesHandler) handleDefaulters(w http.ResponseWriter, r *http.Request) {
	defaulters, err := h.queries.Defaulters(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defaulters)
}

func (h *DuesHandler) handleMarkPaid(w http.ResponseWriter, r *http.Request, dueID string) {
	var req struct {
		Method    string `json:"method"`
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.reconcile.MarkPaidOffline(r.Context(), dueID, req.Method, req.Reference); err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "captured"})
	h.logAudit(r, "dues.mark-paid", dueID, map[string]any{"method": req.Method, "reference": req.Reference})
}

func (h *DuesHandler) handleSendReminders(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		http.Error(w, "reminders not configured", http.StatusServiceUnavailable)
		return
	}
	swept, err := h.reminders.Sweep(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"swept": swept})
	h.logAudit(r, "notifications.send-reminders", "", map[string]any{"swept": swept})
}

func (h *DuesHandler) logAudit(r *http.Request, action, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "dues",
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
