// Package authclient is the HTTP client for the Pulse of People auth service.
//
// Execute wraps any API call with bearer-token injection and the
// refresh-and-retry protocol:
//
//	store := storage.NewMemoryStore()
//	client, err := authclient.New("http://127.0.0.1:8000/api", store,
//		authclient.WithSessionExpiredHandler(func() { fmt.Println("please log in again") }),
//	)
//	resp, err := client.Execute(ctx, "/profile/me/", nil)
//
// A 401 answered while a refresh token is stored triggers one call to
// /auth/refresh/. Only the access token is replaced, and the original request
// is retried once. Callers that hit 401 concurrently for the same access
// token wait on the same refresh. If the refresh is rejected or fails in
// transit, both tokens are cleared, the session-expired handler runs once,
// and the caller receives the original 401.
//
// Login, Register, Refresh and Health are raw calls: no bearer token, no
// retry. Non-2xx replies surface as *StatusError, which matches ErrRejected.
package authclient
