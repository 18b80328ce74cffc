// Package auth carries the bearer token used by a sync session and reads the roles
// inside it.
//
// Credentials are passed explicitly to the snapshot loader and the push channel.
// Nothing here reads tokens from the environment or disk on its own; the token comes
// from configuration (AUTH_TOKEN) or a CLI flag.
package auth
