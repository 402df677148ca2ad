// Package client talks to the molecheck backend over HTTP/JSON.
//
// # Overview
//
// The package provides:
//  1. Transport, a shared HTTP transport that applies the per-call timeout,
//     tags every request with an X-Request-ID, logs it and runs it through
//     a circuit breaker so a dead backend fails fast.
//  2. AuthClient: Login and Register against /auth/*, with normalization of
//     the server's response and error envelope.
//  3. DiagnosticClient: Classify, SaveReport, ListDiagnostics and
//     DeleteDiagnostic against the diagnostics API, attaching a bearer token
//     read from a TokenSource on every call.
//
// # Error Handling
//
// Every failure is an *Error with a Kind of KindNetwork, KindServer or
// KindAuth. Callers can use errors.As, the IsAuth/IsNetwork/IsServer helpers
// or match sentinels with errors.Is: ErrUnauthorized (KindAuth),
// ErrUnavailable (KindNetwork) and ErrNotFound (HTTP 404).
//
// No call is ever retried by this package.
package client
