package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/domain"
)

const maxBodySize = 1 << 20 // 1MB

// respondJSON отправляет JSON ответ.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError отправляет JSON с ошибкой.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError переводит доменные отказы в HTTP статусы.
func respondDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var (
		conflict    *domain.ConflictError
		notFound    *domain.NotFoundError
		validation  *domain.ValidationError
		noDriver    *domain.NoEligibleDriverError
		unavailable *domain.DriverUnavailableError
		fieldErrs   validator.ValidationErrors
	)
	switch {
	case errors.As(err, &conflict):
		respondError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &fieldErrs):
		respondError(w, http.StatusBadRequest, fieldErrs.Error())
	case errors.As(err, &noDriver):
		respondError(w, http.StatusUnprocessableEntity, noDriver.Error())
	case errors.As(err, &unavailable):
		respondError(w, http.StatusUnprocessableEntity, unavailable.Error())
	default:
		log.Error().Err(err).Msg("unhandled request error")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody парсит JSON тело запроса с лимитом размера.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
