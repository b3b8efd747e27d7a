// Package storage provides the durable key-value stores that back the
// persistent and per-session caches. A Store behaves like a browser web
// storage area: string keys, string values, enumeration in insertion order
// and a quota that rejects writes once exhausted.
package storage
