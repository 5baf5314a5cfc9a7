// Package session holds the client-side session state machine.
//
// A Controller starts in the initializing state. Initialize reconciles any
// stored access token against the profile endpoint, after which the session
// is either authenticated (a user is held) or unauthenticated (nil user).
//
//	ctrl := session.NewController(client, store, session.WithNavigator(nav))
//	ctrl.Initialize(ctx)
//	if !ctrl.Login(ctx, "alice@example.com", "pw123") {
//		// bad credentials or unreachable service
//	}
//	if ctrl.HasPermission("manage_campaigns") { ... }
//
// The controller installs itself as the client's session-expired handler: a
// rejected refresh drops the user and calls Navigator.RedirectToLogin.
package session
