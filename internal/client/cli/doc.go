// Package cli provides the interactive Quipflip command-line client.
//
// It wires configuration, local storage, the REST/WebSocket API client,
// and an interactive REPL driving the game loop. Typical flow: prompt for
// credentials, start the background poller and notification channel, and
// execute user commands.
//
// Key features:
//   - Login / Register / Logout with a persisted session
//   - Play prompt, copy, and vote rounds with a live countdown
//   - Join and leave party sessions with synchronized phases
//   - View and claim finalized results
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL, and Root for details.
package cli
