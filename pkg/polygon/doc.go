// Package polygon is a small client for the Polygon.io REST endpoints polyagg
// needs: the options contract listing and per-contract aggregates.
//
// Requests are made with resty and authenticated with a bearer token. The
// client never retries. Failures are classified *errors.Error values so the
// caller can decide how to record them; a cancelled context is returned
// unwrapped.
package polygon
