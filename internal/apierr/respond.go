package apierr

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// body is the wire shape of every error response: code is the contract,
// message is informational only.
type body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteHTTP writes err as a JSON error body with the right status code. A
// plain (non-*Error) error is treated as an unclassified backend failure
// and logged with its full detail, never echoed to the client.
func WriteHTTP(w http.ResponseWriter, err error) {
	var apiErr *Error

	switch e := err.(type) {
	case *BackpressureError:
		apiErr = e.Error
		if e.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfterSeconds))
		}
	case *Error:
		apiErr = e
	default:
		var recovered bool
		apiErr, recovered = As(err)
		if !recovered {
			apiErr = Backend(OriginDatabase, err)
			log.Error().Err(err).Msg("apierr_unclassified_error")
		}
	}

	if apiErr.Cause != nil {
		log.Error().Err(apiErr.Cause).Str("code", apiErr.Code).Msg("apierr_backend_cause")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(body{Code: apiErr.Code, Message: apiErr.Message})
}
