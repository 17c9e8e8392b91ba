package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"
	"sync"

	"github.com/quipflip/quipflip-go/internal/client/api"
	"github.com/quipflip/quipflip-go/internal/client/config"
	"github.com/quipflip/quipflip-go/internal/client/dashboard"
	"github.com/quipflip/quipflip-go/internal/client/localstate"
	"github.com/quipflip/quipflip-go/internal/client/models"
	"github.com/quipflip/quipflip-go/internal/client/party"
	"github.com/quipflip/quipflip-go/internal/client/realtime"
	"github.com/quipflip/quipflip-go/internal/client/results"
	"github.com/quipflip/quipflip-go/internal/client/round"
	"github.com/quipflip/quipflip-go/internal/client/session"
	"github.com/quipflip/quipflip-go/internal/logging"

	_ "modernc.org/sqlite"
)

// gameAPI is the slice of the API client the CLI drives directly.
// Screens, the poller, and the coordinators hold their own narrower views.
type gameAPI interface {
	Login(ctx context.Context, username, password string) (session.TokenGrant, error)
	Register(ctx context.Context, username, password string) (session.TokenGrant, error)
	Logout(ctx context.Context) error
	StartRound(ctx context.Context, typ models.RoundType) (*models.ActiveRound, error)
	Presence(ctx context.Context) ([]string, error)
}

type App struct {
	config   *config.Config
	log      logging.Logger
	db       *sql.DB
	sess     *session.Manager
	api      gameAPI
	roundAPI round.API
	tracker  *round.Tracker
	timer    *round.Countdown
	poller   *dashboard.Poller
	party    *party.Coordinator
	channel  *realtime.Channel
	results  *results.Service
	reader   *bufio.Reader

	mu         sync.Mutex
	partyStop  context.CancelFunc
	partyUnsub func()
	partyID    string
	onlineStop context.CancelFunc
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {

	ctx := context.Background()

	db, err := localstate.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	repo := localstate.NewSQLiteRepository(db)
	sess := session.NewManager(repo, logger)

	apiClient, err := api.New(api.Options{
		BaseURL:   c.APIBaseURL,
		WSBaseURL: c.WSBaseURL,
		Timeout:   c.RequestTimeout,
	}, sess, logger)
	if err != nil {
		return nil, err
	}

	poller := dashboard.NewPoller(apiClient, logger)
	poller.SetInterval(c.DashboardInterval)

	tracker := round.NewTracker(logger, poller.RequestRefresh)
	poller.SetRoundSink(tracker.ApplyDashboard)

	coord := party.NewCoordinator(apiClient, repo, logger)
	channel := realtime.NewChannel(apiClient, logger)
	channel.SetPollInterval(c.PresencePollInterval)
	resultSvc := results.NewService(apiClient, repo, logger)

	a := &App{
		config:   c,
		log:      logger,
		db:       db,
		sess:     sess,
		api:      apiClient,
		roundAPI: apiClient,
		tracker:  tracker,
		poller:   poller,
		party:    coord,
		channel:  channel,
		results:  resultSvc,
		reader:   bufio.NewReader(os.Stdin),
	}

	// The countdown follows whatever round the tracker holds.
	a.timer = round.NewCountdown(a.onRoundExpired)
	tracker.Subscribe(func(r *models.ActiveRound) {
		if r == nil || r.Status != models.StatusActive {
			a.timer.SetTarget(nil)
			return
		}
		exp := r.ExpiresAt
		a.timer.SetTarget(&exp)
	})

	return a, nil
}

// onRoundExpired marks the current round expired locally; the tracker then
// schedules a delayed server re-sync to pick up the authoritative status.
func (a *App) onRoundExpired() {
	if cur := a.tracker.Current(); cur != nil {
		a.tracker.MarkExpiredLocally(cur.RoundID)
	}
}

func (a *App) isLoggedIn() bool {
	return a.sess.Username() != ""
}

// Run restores any persisted session, starts the background loops, and
// hands control to the REPL. It blocks until the user exits or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.sess.Restore(ctx); err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
	}
	if err := a.results.Restore(ctx); err != nil {
		a.log.Warn(ctx, "viewed results restore failed", "error", err)
	}

	go a.timer.Run(ctx)

	a.channel.OnNotification(func(n realtime.Notification) {
		printlnFn("\n[" + n.Kind + "] " + n.Message)
		a.poller.RequestRefresh()
	})

	if a.isLoggedIn() {
		a.startOnline(ctx)
		a.resumeParty(ctx)
	}

	a.Root(ctx)
}

// startOnline launches the loops that only make sense with a valid
// session: the dashboard interval poller and the notification/presence
// channel. A previous login's loops are torn down first.
func (a *App) startOnline(ctx context.Context) {
	a.mu.Lock()
	if a.onlineStop != nil {
		a.onlineStop()
	}
	octx, cancel := context.WithCancel(ctx)
	a.onlineStop = cancel
	a.mu.Unlock()

	go a.poller.Run(octx)
	go a.channel.Run(octx)
	a.poller.RequestRefresh()
}

// stopOnline cancels the session-scoped loops. The channel's socket,
// reconnect schedule, and poll ticker all stop with the context.
func (a *App) stopOnline() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.onlineStop != nil {
		a.onlineStop()
		a.onlineStop = nil
	}
}

// resumeParty restarts the party coordinator if a session survived a
// previous run.
func (a *App) resumeParty(ctx context.Context) {
	id, err := a.party.ResumeSessionID(ctx)
	if err != nil {
		a.log.Warn(ctx, "party resume failed", "error", err)
		return
	}
	if id == "" {
		return
	}
	printlnFn("Rejoining party session", id)
	_ = a.Party(ctx, id)
}

// startParty launches the coordinator loop for the given session,
// replacing any previous one. unsub detaches the caller's state
// subscription and is invoked when the loop is replaced or stopped, so
// rejoining never stacks announcement callbacks.
func (a *App) startParty(ctx context.Context, sessionID string, unsub func()) {
	a.mu.Lock()
	if a.partyStop != nil {
		a.partyStop()
	}
	if a.partyUnsub != nil {
		a.partyUnsub()
	}
	pctx, cancel := context.WithCancel(ctx)
	a.partyStop = cancel
	a.partyUnsub = unsub
	a.partyID = sessionID
	a.mu.Unlock()

	go func() {
		if err := a.party.Run(pctx, sessionID); err != nil && pctx.Err() == nil {
			a.log.Warn(pctx, "party loop stopped", "error", err)
		}
	}()
}

// stopParty cancels the running coordinator loop, if any, and returns the
// session id it was following.
func (a *App) stopParty() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.partyStop != nil {
		a.partyStop()
		a.partyStop = nil
	}
	if a.partyUnsub != nil {
		a.partyUnsub()
		a.partyUnsub = nil
	}
	id := a.partyID
	a.partyID = ""
	return id
}

func (a *App) Close() {
	a.stopOnline()
	a.stopParty()
	a.tracker.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}
