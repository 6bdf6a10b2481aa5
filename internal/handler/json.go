package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DukeRupert/radai/internal/domain"
)

// maxJSONBody bounds JSON request bodies. Image payloads arrive base64
// encoded, so the limit sits above the decoded image cap.
const maxJSONBody = 32 << 20

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large")
		}
		if errors.Is(err, io.EOF) {
			return domain.Invalid(op, "Request body is empty")
		}
		return domain.Invalid(op, "Request body is not valid JSON")
	}
	return nil
}
