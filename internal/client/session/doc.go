// Package session owns the client's notion of who is signed in.
//
// A single Manager is created at startup and passed to everything that
// needs the session. It moves through Uninitialized, Loading and then
// Authenticated or Unauthenticated, persists every successful sign-in to
// the session store and clears it on sign-out. Observers (the navigation
// guard, the REPL prompt) follow it through Subscribe.
package session
