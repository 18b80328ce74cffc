// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber app from it: the listen port, the API key
// required on /feeds routes, and the graceful shutdown timeout.
package server
