// Package fetch loads full feed snapshots over REST.
//
// HTTPLoader sends GET <url>?page=0&size=<n> with the session's bearer token and
// decodes the body through core/codec. Concurrent fetches for the same loader are
// collapsed into one request with singleflight, so a resync requested from the API
// while a reconnect resync is in flight costs a single round trip.
package fetch
