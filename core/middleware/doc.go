// Package middleware groups the HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key check (X-API-Key header or api_key query parameter) on the
//     /feeds routes. Swagger, metrics and health stay public.
//   - rayid: tags every request with a ray id, stored in Locals("ray_id") and echoed
//     in the X-Ray-ID response header, so logger.WithRayID can correlate log lines.
package middleware
