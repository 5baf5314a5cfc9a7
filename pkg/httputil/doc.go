// Package httputil provides the JSON request/response helpers and middleware
// used by the mock auth service.
//
// Error bodies follow the auth service's shape: {"detail": "..."} for
// authentication failures and a field-keyed map for validation failures.
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	if !httputil.RequireFieldsOrError(w, "password", req.Password) {
//		return
//	}
//
// Middleware composes with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
