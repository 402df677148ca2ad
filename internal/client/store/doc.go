// Package store is the persistent session store: a SQLite key/value table
// holding the serialized user profile and the bearer token under fixed
// keys. The pair is written and cleared in a single transaction so the
// two entries never diverge.
package store
