package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for a username and password and attempts to
// create a new account. A successful registration also starts a session,
// mirroring Login.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Choose a username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	grant, err := a.api.Register(ctx, userName, password)
	if err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	if err := a.sess.BeginSession(ctx, grant); err != nil {
		return err
	}

	fmt.Println("Success! Logged in as", a.sess.Username())
	a.startOnline(ctx)
	return nil
}

// Login prompts the user for credentials and tries to authenticate.
//
// On success the granted token is handed to the session manager, which
// persists it for the next run, and a dashboard refresh is requested so
// the prompt picks up the balance.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	grant, err := a.api.Login(ctx, userName, password)
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	if err := a.sess.BeginSession(ctx, grant); err != nil {
		return err
	}

	log.Printf("Login successful")
	a.startOnline(ctx)
	return nil
}

// Logout revokes the refresh cookie server-side, clears the persisted
// session, and tears down everything scoped to it: the party loop, the
// dashboard poller, and the notification/presence channel. Server errors
// are logged but local state is cleared regardless.
func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		log.Printf("Server logout failed: %s", err.Error())
	}
	a.stopOnline()
	a.stopParty()
	return a.sess.Clear(ctx)
}
