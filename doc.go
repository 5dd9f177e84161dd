// Package auth implements stateless token authentication with server-side
// revocation. It issues and verifies HMAC-signed JWTs, keeps a revocation
// blacklist (Redis backed or in process), and wires both into an HTTP
// request pipeline through the authware middleware.
//
// The verification order is fixed: the revocation store is consulted
// before the token signature is checked, and a store failure rejects the
// request instead of letting a possibly revoked token through.
package auth
