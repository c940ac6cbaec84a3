package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	alertdomain "indicator-reporting/backend/internal/alert/domain"
	"indicator-reporting/backend/internal/identity"
	"indicator-reporting/backend/internal/period"
	"indicator-reporting/backend/internal/platform/rbac"
	recorddomain "indicator-reporting/backend/internal/record/domain"
)

type handlers struct {
	deps Deps
	now  func() time.Time
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *handlers) ready(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Pinger != nil {
		if err := h.deps.Pinger.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// dataEntryStatus reports the current submission window and, for stewards,
// how many of their assigned indicators already have a record for the period.
func (h *handlers) dataEntryStatus(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireSteward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	win := period.CurrentWindow(h.now().UTC())
	resp := statusResponse{
		Period:        win.Label(),
		Month:         win.TargetMonth,
		Year:          win.TargetYear,
		WindowOpen:    win.IsOpen,
		DaysRemaining: win.DaysRemaining(),
	}

	if p.Role == identity.RoleSteward {
		assignments, err := h.deps.Assignments.ListBySteward(r.Context(), p.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		records, err := h.deps.Records.ListBySteward(r.Context(), p.ID, win.TargetMonth, win.TargetYear)
		if err != nil {
			writeError(w, err)
			return
		}
		assigned := len(assignments)
		submitted := len(records)
		resp.Assigned = &assigned
		resp.Submitted = &submitted
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Period        string `json:"period"`
	Month         int    `json:"month"`
	Year          int    `json:"year"`
	WindowOpen    bool   `json:"window_open"`
	DaysRemaining int    `json:"days_remaining"`
	Assigned      *int   `json:"assigned_indicators,omitempty"`
	Submitted     *int   `json:"submitted_indicators,omitempty"`
}

type submitRequest struct {
	IndicatorID string  `json:"indicator_id"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
	Value       float64 `json:"value"`
}

func (h *handlers) submitRecord(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireSteward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IndicatorID == "" {
		writeErrorStatus(w, http.StatusBadRequest, "indicator_id is required")
		return
	}

	rec, err := h.deps.Submissions.Submit(r.Context(), p.ID, req.IndicatorID, req.Month, req.Year, req.Value, h.now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// listRecords returns the caller's records. Administrators may inspect any
// steward's records via the steward_id query parameter.
func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireSteward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	stewardID := p.ID
	if requested := r.URL.Query().Get("steward_id"); requested != "" && requested != p.ID {
		if p.Role != identity.RoleAdministrator {
			writeError(w, rbac.ErrPermissionDenied)
			return
		}
		stewardID = requested
	}

	month := queryInt(r, "month")
	year := queryInt(r, "year")
	if month < 0 || month > 12 {
		writeErrorStatus(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	records, err := h.deps.Records.ListBySteward(r.Context(), stewardID, month, year)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": resp, "count": len(resp)})
}

func (h *handlers) listRecordAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireAdministrator(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	recordID := chi.URLParam(r, "recordID")

	entries, err := h.deps.Records.ListAudit(r.Context(), recordID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, auditResponse{
			ID:            e.ID,
			RecordID:      e.RecordID,
			EditorID:      e.EditorID,
			PreviousValue: e.PreviousValue,
			NewValue:      e.NewValue,
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": resp, "count": len(resp)})
}

func (h *handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireSteward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	alerts, unread, err := h.deps.Alerts.List(r.Context(), p, unreadOnly, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":       resp,
		"count":        len(resp),
		"unread_count": unread,
	})
}

func (h *handlers) markAlertRead(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireSteward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	alertID := chi.URLParam(r, "alertID")

	if err := h.deps.Alerts.MarkRead(r.Context(), p, alertID, h.now().UTC()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *handlers) markAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireSteward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.Alerts.MarkAllRead(r.Context(), p, h.now().UTC()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// runReconciliation triggers the backfill immediately, bypassing the day-6
// due check. Administrator only.
func (h *handlers) runReconciliation(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireAdministrator(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.deps.Reconciler.Run(r.Context(), h.now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		TargetMonth: report.TargetMonth,
		TargetYear:  report.TargetYear,
		Missing:     report.Missing,
		Processed:   report.Processed,
		Failed:      report.Failed,
		Errors:      report.Errors,
	})
}

type reconcileResponse struct {
	TargetMonth int      `json:"target_month"`
	TargetYear  int      `json:"target_year"`
	Missing     int      `json:"missing"`
	Processed   int      `json:"processed"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}

type recordResponse struct {
	ID          string    `json:"id"`
	IndicatorID string    `json:"indicator_id"`
	StewardID   string    `json:"steward_id"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Value       float64   `json:"value"`
	State       string    `json:"state"`
	Locked      bool      `json:"locked"`
	Annotation  string    `json:"annotation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRecordResponse(rec *recorddomain.Record) recordResponse {
	return recordResponse{
		ID:          rec.ID,
		IndicatorID: rec.IndicatorID,
		StewardID:   rec.StewardID,
		Month:       rec.Month,
		Year:        rec.Year,
		Value:       rec.Value,
		State:       string(rec.State),
		Locked:      rec.Locked,
		Annotation:  rec.Annotation,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

type auditResponse struct {
	ID            string    `json:"id"`
	RecordID      string    `json:"record_id"`
	EditorID      string    `json:"editor_id"`
	PreviousValue float64   `json:"previous_value"`
	NewValue      float64   `json:"new_value"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

type alertResponse struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	IndicatorID    string     `json:"indicator_id,omitempty"`
	StewardID      string     `json:"steward_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ThresholdValue *float64   `json:"threshold_value,omitempty"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

func toAlertResponse(a *alertdomain.Alert) alertResponse {
	return alertResponse{
		ID:             a.ID,
		Kind:           string(a.Kind),
		IndicatorID:    a.IndicatorID,
		StewardID:      a.StewardID,
		Title:          a.Title,
		Description:    a.Description,
		ThresholdValue: a.ThresholdValue,
		State:          string(a.State),
		CreatedAt:      a.CreatedAt,
		ReadAt:         a.ReadAt,
	}
}

// queryInt parses an integer query parameter, returning 0 when absent or
// malformed.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
