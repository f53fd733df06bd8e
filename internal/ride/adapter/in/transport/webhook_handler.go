package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
)

// WebhookHandler принимает вебхуки внешних платформ бронирования.
type WebhookHandler struct {
	ingest   in.IngestBooking
	validate *validator.Validate
	log      zerolog.Logger
}

// NewWebhookHandler создает обработчик вебхуков.
func NewWebhookHandler(ingest in.IngestBooking, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingest:   ingest,
		validate: validator.New(),
		log:      log,
	}
}

// Routes монтирует маршруты вебхуков.
func (h *WebhookHandler) Routes(r chi.Router) {
	r.Post("/rides", h.handleCreate)
	r.Post("/rides/amend", h.handleAmend)
	r.Post("/rides/cancel", h.handleCancel)
}

// handleCreate обрабатывает POST /webhooks/rides.
// Повторная доставка того же бронирования возвращает 200 с существующей
// поездкой вместо 201.
func (h *WebhookHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload in.BookingCreate
	if !h.decode(w, r, &payload) {
		return
	}

	ride, created, err := h.ingest.CreateBooking(r.Context(), payload)
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, ride)
}

// handleAmend обрабатывает POST /webhooks/rides/amend.
func (h *WebhookHandler) handleAmend(w http.ResponseWriter, r *http.Request) {
	var payload in.BookingAmend
	if !h.decode(w, r, &payload) {
		return
	}

	ride, err := h.ingest.AmendBooking(r.Context(), payload)
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

// handleCancel обрабатывает POST /webhooks/rides/cancel.
func (h *WebhookHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var payload in.BookingCancel
	if !h.decode(w, r, &payload) {
		return
	}

	ride, err := h.ingest.CancelBooking(r.Context(), payload)
	if err != nil {
		respondDomainError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ride)
}

func (h *WebhookHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(w, r, dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "empty request body")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request format")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondDomainError(w, h.log, err)
		return false
	}
	return true
}
