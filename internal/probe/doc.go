// Package probe issues the lightweight HTTP requests the client makes on its
// own behalf: resource existence checks, worker script validation,
// connectivity polling and cache-aware resource fetches.
package probe
