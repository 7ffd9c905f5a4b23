// Package server wires the camfeed HTTP routes behind a single multiplexer:
// the live stream endpoint, the stats endpoint, and static asset serving.
//
// Every response carries an unconditional CORS header so a browser page
// served from anywhere can attach a <video> element to the stream, and every
// request is logged with a request id for correlation.
package server
