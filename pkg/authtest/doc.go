// Package authtest provides an in-memory auth service speaking the same HTTP
// API as the production backend: login, registration, token refresh, the
// profile endpoint and a health probe.
//
// It backs the session client tests and the pulse-authmock binary.
// Accounts are seeded with WithAccount or AddAccount, tokens can be expired
// or revoked to drive refresh paths, and Enqueue scripts one-off replies:
//
//	srv, ts := authtest.NewTestServer(t, authtest.WithAccount(authtest.Account{
//		Username: "alice", Email: "alice@example.com", Password: "pw123", Role: "volunteer",
//	}))
//	srv.Enqueue(authtest.RefreshPath, http.StatusUnauthorized, nil)
//	_ = ts.URL
package authtest
