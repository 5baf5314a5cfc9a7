package authclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Auth service endpoints, relative to the base URL
const (
	LoginPath    = "/auth/login/"
	RegisterPath = "/auth/register/"
	RefreshPath  = "/auth/refresh/"
	ProfilePath  = "/profile/me/"
	HealthPath   = "/health/"
)

// LoginRequest is the body of POST /auth/login/. Exactly one identifier is sent.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register/
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// RequestOptions describes an authenticated call.
// Body is JSON-encoded unless it is already a []byte or json.RawMessage.
type RequestOptions struct {
	Method string
	Body   interface{}
	Header http.Header
}

// Response is a fully buffered HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}
