// Package api exposes the thin HTTP shell over the spend service. Handlers
// validate request shape and bounds, forward the fields to the lifecycle
// manager, and serialize whatever result object they receive verbatim.
package api
