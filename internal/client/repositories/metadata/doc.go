// Package metadata is the key/value table backing the local session store.
// Values are opaque bytes; Get reports a missing key as (nil, nil).
package metadata
