// Package cli implements the pulse-session command-line client.
//
// # Commands
//
// login: authenticate; the identifier is tried as a username, then as an email
//
//	pulse-session login --password-stdin alice@example.com
//
// signup: register and log in
//
//	pulse-session signup --email bob@example.com --name "Bob van Dyke" --password secret
//
// whoami / can: inspect the reconciled user
//
//	pulse-session whoami --json
//	pulse-session can manage_campaigns
//
// request: call any endpoint with bearer auth and transparent refresh
//
//	pulse-session request --method POST --data '{"title":"ward 9"}' /surveys/
//
// status: probe /health/ and report the session state
//
//	pulse-session status --metrics
//
// logout: clear stored tokens
//
// Configuration is read by pkg/config; see its documentation for the
// PULSE_* environment variables.
package cli
