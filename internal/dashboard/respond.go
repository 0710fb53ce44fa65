package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
	"github.com/eddiefleurent/strategy_lab/internal/storage"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
)

// maxBodyBytes caps request bodies; imports are the largest payload.
const maxBodyBytes = 4 << 20

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps domain errors onto HTTP statuses. Server side failures are
// logged; client errors are only returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrTradeNotFound),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, marketdata.ErrNoQuote):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateTrade),
		errors.Is(err, storage.ErrTradeClosed):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, pricing.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidLeg),
		errors.Is(err, models.ErrInvalidSnapshot),
		errors.Is(err, strategy.ErrPreconditionViolation),
		errors.Is(err, strategy.ErrInvalidParams),
		errors.Is(err, analysis.ErrNoLegs),
		errors.Is(err, storage.ErrInvalidTrade):
		return http.StatusBadRequest
	case errors.Is(err, marketdata.ErrAllSourcesFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", errBadRequest, err)
	}
	return nil
}
