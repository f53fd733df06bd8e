package transport

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/shared/user"
)

// APIHandler — внутренний REST API для операторов и водителей.
type APIHandler struct {
	assign   in.AssignRide
	start    in.StartRide
	complete in.CompleteRide
	cancel   in.CancelRide
	queries  in.QueryRides
	log      zerolog.Logger
}

// NewAPIHandler создает обработчик API поездок.
func NewAPIHandler(
	assign in.AssignRide,
	start in.StartRide,
	complete in.CompleteRide,
	cancel in.CancelRide,
	queries in.QueryRides,
	log zerolog.Logger,
) *APIHandler {
	return &APIHandler{
		assign:   assign,
		start:    start,
		complete: complete,
		cancel:   cancel,
		queries:  queries,
		log:      log,
	}
}

// Routes монтирует маршруты API. Авторизация по ролям навешивается здесь.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/rides", h.handleList)
	r.Get("/rides/{rideID}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(user.RoleAdmin, user.RoleAssistant))
		r.Get("/rides/critical", h.handleListCritical)
		r.Post("/rides/{rideID}/assign", h.handleAssign)
		r.Post("/rides/{rideID}/cancel", h.handleCancel)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(user.RoleDriver))
		r.Post("/rides/{rideID}/accept", h.handleAccept)
		r.Post("/rides/{rideID}/start", h.handleStart)
		r.Post("/rides/{rideID}/complete", h.handleComplete)
	})
}

// handleList обрабатывает GET /api/rides. Водитель видит свои поездки
// плюс неназначенный пул; операторы — все.
func (h *APIHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := out.ListFilter{
		Status:         q.Get("status"),
		DriverID:       q.Get("driver_id"),
		SourcePlatform: q.Get("source_platform"),
	}
	if UserRole(r.Context()) == user.RoleDriver {
		filter.VisibleToDriver = UserID(r.Context())
		filter.DriverID = ""
	}

	var err error
	if filter.DateFrom, err = parseTimeParam(q.Get("date_from")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date_from")
		return
	}
	if filter.DateTo, err = parseTimeParam(q.Get("date_to")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date_to")
		return
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	rides, total, err := h.queries.ListRides(r.Context(), filter)
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"rides": rides,
		"total": total,
	})
}

// handleGet обрабатывает GET /api/rides/{rideID} — поездка с историей.
func (h *APIHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.queries.GetRide(r.Context(), chi.URLParam(r, "rideID"))
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleListCritical обрабатывает GET /api/rides/critical.
func (h *APIHandler) handleListCritical(w http.ResponseWriter, r *http.Request) {
	rides, err := h.queries.ListCritical(r.Context())
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

type assignRequest struct {
	DriverID string `json:"driver_id,omitempty"`
	Forced   bool   `json:"forced,omitempty"`
}

// handleAssign обрабатывает POST /api/rides/{rideID}/assign.
// Без driver_id включается автоподбор. forced доступен только админу и
// требует явного driver_id.
func (h *APIHandler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actorID := UserID(r.Context())
	input := in.AssignInput{
		RideID:            chi.URLParam(r, "rideID"),
		CandidateDriverID: req.DriverID,
		ActorID:           actorID,
	}
	if req.Forced {
		if UserRole(r.Context()) != user.RoleAdmin {
			respondError(w, http.StatusForbidden, "forced assignment requires admin role")
			return
		}
		if req.DriverID == "" {
			respondError(w, http.StatusBadRequest, "forced assignment requires driver_id")
			return
		}
		input.ForcedBy = &actorID
	}

	ride, err := h.assign.Assign(r.Context(), input)
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

// handleAccept обрабатывает POST /api/rides/{rideID}/accept — водитель
// принимает поездку из пула. Проигравший гонку получает 409.
func (h *APIHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	driverID := UserID(r.Context())
	ride, err := h.assign.Assign(r.Context(), in.AssignInput{
		RideID:            chi.URLParam(r, "rideID"),
		CandidateDriverID: driverID,
		ActorID:           driverID,
	})
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

// handleStart обрабатывает POST /api/rides/{rideID}/start.
func (h *APIHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	ride, err := h.start.Start(r.Context(), chi.URLParam(r, "rideID"), UserID(r.Context()))
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

// handleComplete обрабатывает POST /api/rides/{rideID}/complete.
func (h *APIHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ride, err := h.complete.Complete(r.Context(), chi.URLParam(r, "rideID"), UserID(r.Context()))
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

type cancelRequest struct {
	Notes string `json:"notes,omitempty"`
}

// handleCancel обрабатывает POST /api/rides/{rideID}/cancel.
func (h *APIHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	actorID := UserID(r.Context())
	ride, err := h.cancel.Cancel(r.Context(), chi.URLParam(r, "rideID"), &actorID, req.Notes)
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
