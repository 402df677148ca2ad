// Package apistub is an in-memory implementation of the molecheck backend
// HTTP API, built on echo. It issues HS256 JWTs, answers errors in the
// backend's {"detail": ...} envelope and classifies images with a
// deterministic stand-in model. It backs cmd/apistub and the end-to-end
// tests of the client.
package apistub
