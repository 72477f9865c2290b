package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bluemoonski/bluemoon-data/internal/api/respond"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

const defaultNotableLimit = 14

type runDTO struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Difficulty *string `json:"difficulty"`
}

type reportDTO struct {
	ID      int64       `json:"id"`
	Date    string      `json:"date"`
	Runs    []runDTO    `json:"runs"`
	Empty   bool        `json:"empty"`
	Resort  int64       `json:"resort_id"`
	Notable *notableDTO `json:"notable,omitempty"`
}

type deliveryDTO struct {
	Kind       string    `json:"kind,omitempty"`
	DeliveryID string    `json:"delivery_id"`
	SentAt     time.Time `json:"sent_at"`
}

type notableDTO struct {
	ID           int64        `json:"id"`
	ReportID     int64        `json:"report_id"`
	Date         string       `json:"date"`
	Runs         []runDTO     `json:"runs"`
	Notification *deliveryDTO `json:"notification,omitempty"`
	Alert        *deliveryDTO `json:"alert,omitempty"`
}

type resortDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Timezone    string `json:"timezone"`
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

func runDTOs(runs []store.Run) []runDTO {
	out := make([]runDTO, len(runs))
	for i, r := range runs {
		out[i] = runDTO{ID: r.ID, Name: r.Name, Difficulty: r.Difficulty}
	}
	return out
}

func notableDTOOf(n store.NotableReport) notableDTO {
	dto := notableDTO{
		ID:       n.ID,
		ReportID: n.ReportID,
		Date:     n.Date.Format(time.DateOnly),
		Runs:     runDTOs(n.Runs),
	}
	if n.Notification != nil {
		dto.Notification = &deliveryDTO{
			Kind:       string(n.Notification.Kind),
			DeliveryID: n.Notification.DeliveryID,
			SentAt:     n.Notification.SentAt,
		}
	}
	if n.Alert != nil {
		dto.Alert = &deliveryDTO{
			DeliveryID: n.Alert.DeliveryID,
			SentAt:     n.Alert.SentAt,
		}
	}
	return dto
}

func (h *Handler) resortParam(w http.ResponseWriter, r *http.Request) (store.Resort, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "resortID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_RESORT_ID", "Resort ID must be an integer")
		return store.Resort{}, false
	}
	resort, err := h.store.GetResort(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "RESORT_NOT_FOUND", "No such resort")
		return store.Resort{}, false
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load resort")
		return store.Resort{}, false
	}
	return resort, true
}

// ListResorts returns all configured resorts.
// @Summary List resorts
// @Description Returns all resorts with their subscriber counts.
// @Tags resorts
// @Produce json
// @Success 200 {array} handler.resortDTO
// @Router /api/v1/resorts [get]
func (h *Handler) ListResorts(w http.ResponseWriter, r *http.Request) {
	resorts, err := h.store.ListResorts(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list resorts")
		return
	}

	out := make([]resortDTO, 0, len(resorts))
	for _, resort := range resorts {
		subs, err := h.store.SubscriberCount(r.Context(), resort.ID)
		if err != nil {
			respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count subscribers")
			return
		}
		out = append(out, resortDTO{
			ID:          resort.ID,
			Name:        resort.Name,
			Slug:        resort.Slug,
			Timezone:    resort.Timezone,
			Topic:       resort.Topic,
			Subscribers: subs,
		})
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// GetLatestReport returns a resort's most recent daily report.
// @Summary Latest daily report
// @Description Returns the most recent grooming report for a resort,
// including zero-run days.
// @Tags reports
// @Produce json
// @Param resortID path int true "Resort ID"
// @Success 200 {object} handler.reportDTO
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/resorts/{resortID}/reports/latest [get]
func (h *Handler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	resort, ok := h.resortParam(w, r)
	if !ok {
		return
	}

	rep, err := h.store.LatestReport(r.Context(), resort.ID)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NO_REPORTS", "Resort has no reports yet")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load report")
		return
	}

	dto := reportDTO{
		ID:     rep.ID,
		Date:   rep.Date.Format(time.DateOnly),
		Runs:   runDTOs(rep.Runs),
		Empty:  len(rep.Runs) == 0,
		Resort: resort.ID,
	}

	notable, err := h.store.NotableReportFor(r.Context(), rep.ID)
	switch {
	case err == nil:
		n := notableDTOOf(notable)
		dto.Notable = &n
	case errors.Is(err, store.ErrNotFound):
		// report predates the engine's notable bookkeeping
	default:
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load notable report")
		return
	}

	respond.WriteJSON(w, http.StatusOK, dto)
}

// GetNotableReports returns a resort's recent notable reports.
// @Summary Recent notable reports
// @Description Returns the rarely-groomed subsets of recent daily reports,
// newest first, with any notification or alert recorded against each.
// @Tags reports
// @Produce json
// @Param resortID path int true "Resort ID"
// @Param limit query int false "Maximum rows (default 14)"
// @Success 200 {array} handler.notableDTO
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/resorts/{resortID}/notable [get]
func (h *Handler) GetNotableReports(w http.ResponseWriter, r *http.Request) {
	resort, ok := h.resortParam(w, r)
	if !ok {
		return
	}

	limit := defaultNotableLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	notables, err := h.store.RecentNotableReports(r.Context(), resort.ID, limit)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load notable reports")
		return
	}

	out := make([]notableDTO, 0, len(notables))
	for _, n := range notables {
		out = append(out, notableDTOOf(n))
	}
	respond.WriteJSON(w, http.StatusOK, out)
}
