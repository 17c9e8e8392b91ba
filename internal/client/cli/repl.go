package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Dashboard(ctx context.Context) error
	Play(ctx context.Context, typ string) error
	Party(ctx context.Context, sessionID string) error
	LeaveParty(ctx context.Context) error
	Results(ctx context.Context) error
	Claim(ctx context.Context, phrasesetID string) error
	Presence(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the Quipflip CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help              — show available commands
//	  - register          — create an account
//	  - login             — authenticate
//	  - exit | quit       — leave the program
//
//	Logged in:
//	  - help              — show available commands
//	  - dashboard | d     — show the player dashboard
//	  - play <type>       — start a prompt, copy, or vote round
//	  - party <id>        — join a party session
//	  - leave             — leave the current party session
//	  - results           — show pending and unclaimed results
//	  - claim <id>        — claim a finalized result payout
//	  - who               — show players currently online
//	  - logout            — log out
//	  - exit | quit       — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("qf> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (d)ashboard, play <prompt|copy|vote>, party <id>, leave, results, claim <id>, who, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "d", "dashboard":
			_ = a.Dashboard(ctx)

		case "play":
			if len(args) == 0 {
				printlnFn("Usage: play <prompt|copy|vote>")
				continue
			}
			_ = a.Play(ctx, args[0])

		case "party":
			if len(args) == 0 {
				printlnFn("Usage: party <session-id>")
				continue
			}
			_ = a.Party(ctx, args[0])

		case "leave":
			_ = a.LeaveParty(ctx)

		case "results":
			_ = a.Results(ctx)

		case "claim":
			if len(args) == 0 {
				printlnFn("Usage: claim <phraseset-id>")
				continue
			}
			_ = a.Claim(ctx, args[0])

		case "who":
			_ = a.Presence(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
