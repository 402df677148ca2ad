// Package cli provides the interactive molecheck command-line client.
//
// It wires configuration, the local session store, the API clients, the
// session manager and the navigation guard behind an App. The App backs
// both the cobra subcommands of cmd/molecheck and an interactive REPL.
//
// Key features:
//   - Register / Login / Logout / Whoami
//   - Diagnose an image, optionally saving the result to the history
//   - History and Delete (with confirmation)
//   - Labels: the lesion catalog
//
// Commands that need a session go through the navigation guard first. A
// background watcher announces forced sign-outs while the REPL runs.
// See App, App.Run and runREPL for details.
package cli
