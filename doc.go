// Package petsera provides the client-side auth core for the Petsera
// pet-adoption platform: session observation, credential operations, request
// dispatch, role resolution, and route guards.
//
// Session lifecycle:
//   - SessionStore is the single source of truth for the signed-in principal.
//     It consumes the identity provider's observer feed on one goroutine, so a
//     manual sign-out and a stale provider event can never race each other
//     into the state. Subscribe for change notifications; Snapshot for reads.
//
// Credential operations:
//   - Credentials runs register, sign-in, social completion and sign-out.
//     Every path that ends with a live principal also ends with a backend
//     session credential in the TokenCache, or the provider session is rolled
//     back so the two can never disagree. Sign-out clears local state first
//     and treats remote invalidation as best effort.
//
// Request dispatch:
//   - Transport is an http.RoundTripper that stamps outgoing requests with
//     the current bearer credential, refreshing from the provider when the
//     token is stale and collapsing concurrent refreshes into one round trip.
//
// Guards:
//   - Guard evaluates access decisions (pending/granted/denied) from session
//     snapshots and resolved roles; RouteGuard enforces the same decisions on
//     the server with redirects and the once-only return-to cookie.
package petsera
