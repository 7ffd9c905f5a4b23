// Package api hosts the two HTTP handlers fronting the camfeed service: a
// stats endpoint reporting broadcaster, connection, and config snapshots, and
// a static file handler serving the public/ player page.
//
// Handler implementations assume upstream middleware from internal/server has
// already attached request ids, logging, metrics, and CORS headers.
package api
