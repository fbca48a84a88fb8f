// Package postgres provides PostgreSQL implementations of the store
// interfaces. Every implementation accepts a store.DBTX so it runs the same
// against a connection pool or inside a transaction, and maps driver errors
// onto the store package's sentinel errors.
package postgres
