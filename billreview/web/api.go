package web

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	apperrors "github.com/chrscato/cdx-billreview/billreview/errors"
	"github.com/chrscato/cdx-billreview/billreview/health"
	"github.com/chrscato/cdx-billreview/billreview/models"
	"github.com/chrscato/cdx-billreview/billreview/responseutils"
	"github.com/chrscato/cdx-billreview/billreview/service"
)

type Handler struct {
	svc service.Service
	hc  health.HealthChecker
}

func NewHandler(svc service.Service, db *sql.DB) *Handler {
	return &Handler{svc: svc, hc: health.NewHealthChecker(db)}
}

type failsResponse struct {
	Fails []*models.FailedBill `json:"fails"`
	Count int                  `json:"count"`
}

type groupedFailsResponse struct {
	GroupBy string                          `json:"group_by"`
	Groups  map[string][]*models.FailedBill `json:"groups"`
}

// GetFails lists the failed bills matching the supplied filter criteria.
// With a groupBy parameter the same collection comes back partitioned
// instead; grouping and filtering do not combine.
func (h *Handler) GetFails(w http.ResponseWriter, r *http.Request) {
	if groupBy := r.URL.Query().Get("groupBy"); groupBy != "" {
		switch service.GroupDimension(groupBy) {
		case service.GroupByKind, service.GroupByProvider, service.GroupByAgeBucket:
		default:
			responseutils.WriteError(w, r, &apperrors.MalformedRequestError{Msg: "unsupported groupBy value " + groupBy})
			return
		}

		groups, err := h.svc.GroupFailedBills(r.Context(), service.GroupDimension(groupBy))
		if err != nil {
			responseutils.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, groupedFailsResponse{GroupBy: groupBy, Groups: groups})
		return
	}

	filter := service.BillFilter{
		Kind:      models.FailureKind(r.URL.Query().Get("kind")),
		Provider:  r.URL.Query().Get("provider"),
		AgeBucket: r.URL.Query().Get("age"),
		Search:    r.URL.Query().Get("q"),
	}

	fails, err := h.svc.GetFailedBills(r.Context(), filter)
	if err != nil {
		responseutils.WriteError(w, r, err)
		return
	}
	if fails == nil {
		fails = []*models.FailedBill{}
	}

	render.JSON(w, r, failsResponse{Fails: fails, Count: len(fails)})
}

func (h *Handler) GetFailStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetAggregateStats(r.Context())
	if err != nil {
		responseutils.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

func (h *Handler) GetFailFilters(w http.ResponseWriter, r *http.Request) {
	options, err := h.svc.GetFilterOptions(r.Context())
	if err != nil {
		responseutils.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, options)
}

func (h *Handler) GetFail(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	bill, err := h.svc.GetFailedBill(r.Context(), filename)
	if err != nil {
		responseutils.WriteError(w, r, err)
		return
	}
	render.JSON(w, r, bill)
}

// AssignRates applies an operator's rate assignment to the named bill. On
// success the bill leaves the failed set and the applied assignment comes
// back for display.
func (h *Handler) AssignRates(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	var req models.RateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responseutils.WriteError(w, r, &apperrors.MalformedRequestError{Msg: "request body is not valid JSON"})
		return
	}

	result, err := h.svc.AssignRates(r.Context(), filename, req)
	if err != nil {
		responseutils.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	m := make(map[string]string)

	dbStatus, dbOK := h.hc.IsDatabaseOK(r.Context())
	m["database"] = dbStatus

	if !dbOK {
		render.Status(r, http.StatusBadGateway)
	}
	render.JSON(w, r, m)
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"version": constants.Version})
}
