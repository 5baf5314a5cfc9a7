package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// BearerToken extracts the credential from an "Authorization: Bearer" header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Required collects a "This field is required." error for every blank field.
// Fields are given as name/value pairs.
func Required(pairs ...string) FieldErrors {
	errs := FieldErrors{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			errs[pairs[i]] = []string{"This field is required."}
		}
	}
	return errs
}

// RequireFieldsOrError writes a 400 when any field is blank
func RequireFieldsOrError(w http.ResponseWriter, pairs ...string) bool {
	if errs := Required(pairs...); len(errs) > 0 {
		WriteFieldErrors(w, errs)
		return false
	}
	return true
}
