package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

func (a *App) getStatus() string {
	s := ""
	if name := a.sess.Username(); name != "" {
		s = name
		if d := a.poller.State().Get(); d != nil {
			s = fmt.Sprintf("%s %d pts", s, d.Player.Balance)
		}
		if a.timer.HasTarget() {
			s = fmt.Sprintf("%s | %ds left", s, a.timer.Remaining())
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) Root(ctx context.Context) {

	printlnFn("Welcome to Quipflip CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if !a.isLoggedIn() {
		_ = a.Login(ctx)
	}

	runREPL(ctx, a, a.getStatus, scanner)
}
