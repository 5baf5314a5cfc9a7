package authtest

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/pulseofpeople/sessionkit/pkg/httputil"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
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

type tokenError struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

var errTokenNotValid = tokenError{Detail: "Given token not valid for any token type", Code: "token_not_valid"}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	errs := httputil.Required("password", req.Password)
	if req.Username == "" && req.Email == "" {
		errs["username"] = []string{"This field is required."}
	}
	if len(errs) > 0 {
		httputil.WriteFieldErrors(w, errs)
		return
	}

	s.mu.Lock()
	// The identifier is matched only against the field it was sent in
	account := s.lookupLocked(req.Username, req.Email)
	if account == nil || account.Password != req.Password {
		s.mu.Unlock()
		httputil.WriteUnauthorized(w, "No active account found with the given credentials")
		return
	}
	access, refresh := s.issueLocked(account.ID)
	s.mu.Unlock()

	s.logger.ForContext(r.Context()).WithField("account_id", account.ID).Info("issued token pair")
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"access":  access,
		"refresh": refresh,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !httputil.RequireFieldsOrError(w,
		"username", req.Username,
		"email", req.Email,
		"password", req.Password,
		"password_confirm", req.PasswordConfirm,
	) {
		return
	}
	if req.Password != req.PasswordConfirm {
		httputil.WriteFieldErrors(w, httputil.FieldErrors{"password": {"Password fields didn't match."}})
		return
	}

	s.mu.Lock()
	errs := httputil.FieldErrors{}
	if s.lookupLocked(req.Username, "") != nil {
		errs["username"] = []string{"A user with that username already exists."}
	}
	if s.lookupLocked("", req.Email) != nil {
		errs["email"] = []string{"A user with that email already exists."}
	}
	if len(errs) > 0 {
		s.mu.Unlock()
		httputil.WriteFieldErrors(w, errs)
		return
	}
	id := s.addAccount(Account{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      "user",
	})
	account := *s.accounts[id]
	s.mu.Unlock()

	s.logger.ForContext(r.Context()).WithField("account_id", id).Info("registered account")
	_ = httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    profileBody(&account),
		"message": "User registered successfully",
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireFieldsOrError(w, "refresh", req.Refresh) {
		return
	}

	s.delayRefresh(r)

	s.mu.Lock()
	accountID, ok := s.refresh[req.Refresh]
	if !ok {
		s.mu.Unlock()
		_ = httputil.WriteJSON(w, http.StatusUnauthorized, tokenError{Detail: "Token is invalid or expired", Code: "token_not_valid"})
		return
	}
	access, _ := s.issueLocked(accountID)
	s.mu.Unlock()

	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.BearerToken(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication credentials were not provided.")
		return
	}

	s.mu.Lock()
	accountID, ok := s.access[token]
	var account Account
	if ok {
		account = *s.accounts[accountID]
	}
	s.mu.Unlock()

	if !ok {
		_ = httputil.WriteJSON(w, http.StatusUnauthorized, errTokenNotValid)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, profileBody(&account))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func profileBody(a *Account) map[string]interface{} {
	body := map[string]interface{}{
		"id":         a.ID,
		"username":   a.Username,
		"email":      a.Email,
		"first_name": a.FirstName,
		"last_name":  a.LastName,
	}
	if a.Role != "" {
		body["role"] = a.Role
	}
	if a.Permissions != nil {
		body["permissions"] = a.Permissions
	}
	if a.AvatarURL != "" {
		body["avatar_url"] = a.AvatarURL
	}
	if a.Organization != 0 {
		body["organization"] = a.Organization
	}
	if a.Ward != "" {
		body["ward"] = a.Ward
	}
	if a.Constituency != "" {
		body["constituency"] = a.Constituency
	}
	return body
}

// readBody buffers the request body and rewinds it for the next handler.
// The size cap comes from the MaxBytesMiddleware in front of it.
func readBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return strings.TrimSpace(string(data)), nil
}
