// Package api adapts HTTP requests to the chart service. It parses
// multipart uploads and query strings, maps service errors to status codes
// and writes JSON responses. Routing lives in cmd/server.
package api
