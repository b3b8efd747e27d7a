// Package worker coordinates the background worker that keeps cached
// content in sync with the server. It registers the worker, observes its
// lifecycle, and runs the update handshake that activates a waiting worker
// and reloads the page once it takes control. The worker itself is opaque
// and reached only through the tagged messages defined here.
package worker
