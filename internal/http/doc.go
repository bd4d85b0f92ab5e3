// Package http provides HTTP handlers and middleware for the transport API.
//
// The router exposes the following endpoints:
//   - POST /register: creates an account. Body: {"email","password","full_name"}.
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","user"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted from
//     the Authorization header or session cookie. Returns 204 and clears the cookie.
//   - GET /users, POST /users, GET/PUT/DELETE /users/{id}: administrator controlled
//     user management exchanging the `userDTO` payload defined in user_handler.go.
//     GET /users/me and PUT /users/me let any principal read and complete their own
//     profile.
//   - GET /schedules, POST /schedules, GET /schedules/{id}: weekly schedule
//     submission and retrieval. POST /schedules/{id}/review records an admin
//     approve or reject decision.
//   - GET /change-requests, POST /change-requests,
//     POST /change-requests/{id}/review: day-level pickup change requests and
//     their admin review.
//   - GET /trips, GET /trips/current, POST /trips/push, POST /trips/qr,
//     POST /trips/start, POST /trips/end: trip records and their lifecycle
//     actions, exchanging the `tripDTO` payload defined in trip_handler.go.
//   - GET /addresses, POST /addresses, GET/DELETE /addresses/{id}: saved
//     addresses for the authenticated user.
//   - GET /notifications, POST /notifications/dismiss: the in-app notification
//     feed. POST /device-tokens and DELETE /device-tokens/{token} manage push
//     delivery targets.
//   - GET /places/autocomplete, GET /places/details, GET /places/reverse:
//     proxied address lookups.
//   - GET /feed: upgrades to the websocket change event feed carrying
//     schedule, change request, trip and notification events. Administrator
//     connections also receive every user's schedule and trip events.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
