package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Diagnose(ctx context.Context, path string, save bool) error
	Save(ctx context.Context) error
	Reset(ctx context.Context) error
	History(ctx context.Context) error
	Delete(ctx context.Context, id int64) error
	Labels(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the molecheck CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  help, register, login, labels, exit | quit
//
//	Logged in:
//	  help, whoami, diagnose <image> [--save], save, reset,
//	  (h)istory, delete <id>, labels, logout, exit | quit
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors to the user.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("molecheck %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, diagnose <image> [--save], save, reset, (h)istory, delete <id>, labels, logout, exit")
			} else {
				printlnFn("Available commands: register, login, labels, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			email := ""
			if len(args) > 0 {
				email = args[0]
			}
			_ = a.Login(ctx, email, "")

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.Whoami(ctx)

		case "diagnose":
			path, save := "", false
			for _, arg := range args {
				if arg == "--save" || arg == "-s" {
					save = true
				} else if path == "" {
					path = arg
				}
			}
			if path == "" {
				printlnFn("Usage: diagnose <image> [--save]")
				continue
			}
			_ = a.Diagnose(ctx, path, save)

		case "save":
			_ = a.Save(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "h", "history":
			_ = a.History(ctx)

		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			_ = a.Delete(ctx, id)

		case "labels":
			_ = a.Labels(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

// replAdapter binds App.Delete to the App's own confirmer for the REPL.
type replAdapter struct {
	*App
}

func (r replAdapter) Delete(ctx context.Context, id int64) error {
	return r.App.Delete(ctx, id, nil)
}

// Run starts the session watcher and the REPL; it blocks until the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.WatchSession(ctx)

	fmt.Fprintln(a.out, "Welcome to molecheck (type 'help' for commands)")
	runREPL(ctx, replAdapter{a}, a.getStatus, a.reader)
}
