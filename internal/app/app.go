package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/credential"
	"github.com/nhle/shuttledesk/internal/keys"
	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/notify"
	"github.com/nhle/shuttledesk/internal/store"
	appsync "github.com/nhle/shuttledesk/internal/sync"
	"github.com/nhle/shuttledesk/internal/theme"
	"github.com/nhle/shuttledesk/internal/ui"
	"github.com/nhle/shuttledesk/internal/ui/alertview"
	"github.com/nhle/shuttledesk/internal/ui/bookings"
	"github.com/nhle/shuttledesk/internal/ui/command"
	"github.com/nhle/shuttledesk/internal/ui/feed"
	helpview "github.com/nhle/shuttledesk/internal/ui/help"
	"github.com/nhle/shuttledesk/internal/ui/login"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewFeed
	ViewBookings
	ViewHelp
	ViewCommand
)

// relabelInterval is how often relative time labels are recomputed.
const relabelInterval = 30 * time.Second

// alertQueueSize bounds alerts waiting for the UI.
const alertQueueSize = 64

type (
	// sessionStartedMsg reports the outcome of a sign-in or resume.
	sessionStartedMsg struct {
		identity *model.Identity
		err      error
		resumed  bool
	}

	// feedChangedMsg asks the feed view to re-read the notifier state.
	feedChangedMsg struct {
		hint string
	}

	// storeChangedMsg reports a database change made by another process.
	storeChangedMsg struct{}

	relabelTickMsg time.Time
)

// ChangeNotifier reports external changes to the database.
type ChangeNotifier interface {
	Changes() <-chan struct{}
}

// Options configures the root model.
type Options struct {
	Config  *model.AppConfig
	Backend Backend
	Store   store.FeedStore
	Ring    credential.Ring

	// Changes, when set, triggers a feed reload on external writes.
	Changes ChangeNotifier

	// Forward receives every alert in addition to the on-screen modal.
	Forward alert.Dispatcher

	Metrics *appsync.PollMetrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// pollStatus summarizes the last poll for the header.
type pollStatus struct {
	last        time.Time
	authExpired bool
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the signed-in session.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	core         *Core
	bridge       *alertBridge
	changes      ChangeNotifier
	logger       *slog.Logger
	now          func() time.Time

	loginView    login.Model
	feedView     feed.Model
	bookingsView bookings.Model
	helpView     helpview.Model
	commandView  command.Model
	alerts       alertview.Model

	identity *model.Identity
	unread   int
	status   pollStatus
	hint     string
	ready    bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	logger := logging.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	bridge := newAlertBridge(alertQueueSize)
	var dispatcher alert.Dispatcher = bridge
	if opts.Forward != nil {
		dispatcher = alert.Multi{bridge, opts.Forward}
	}

	core := NewCore(CoreOptions{
		Config:     opts.Config,
		Backend:    opts.Backend,
		Store:      opts.Store,
		Dispatcher: dispatcher,
		Ring:       opts.Ring,
		Metrics:    opts.Metrics,
		Logger:     logger,
		Now:        now,
	})

	return Model{
		currentView:  ViewLogin,
		keys:         k,
		core:         core,
		bridge:       bridge,
		changes:      opts.Changes,
		logger:       logger,
		now:          now,
		loginView:    login.New(opts.Config.API.BaseURL, 80, 24),
		feedView:     feed.New(k, 80, 24),
		bookingsView: bookings.New(k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		alerts:       alertview.New(80),
	}
}

// Core exposes the notification core, for shutdown by the caller.
func (m Model) Core() *Core {
	return m.core
}

// Init tries the remembered session and starts the long-lived listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.resume(),
		m.core.Poller.WaitForNextResult(),
		m.bridge.WaitForAlert(),
		m.waitForStoreChange(),
		relabelTick(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.feedView.SetSize(w, h)
		m.bookingsView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.alerts.SetSize(w)
		// Forward to the active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionStartedMsg:
		return m.handleSessionStarted(msg)

	case login.SubmitMsg:
		return m, m.signIn(msg)

	case login.CancelMsg:
		return m, tea.Quit

	case appsync.PollResultMsg:
		return m.handlePollResult(msg)

	case appsync.RefreshSkippedMsg:
		if errors.Is(msg.Reason, appsync.ErrPollInFlight) {
			m.hint = "poll already running"
		}
		return m, nil

	case alertMsg:
		// Alerts raised for a session that has since ended are dropped.
		if !m.isCurrent(msg.alert.Recipient) {
			return m, m.bridge.WaitForAlert()
		}
		cmd := m.alerts.Push(msg.alert)
		return m, tea.Batch(cmd, m.bridge.WaitForAlert())

	case alertview.ResolvedMsg:
		if msg.Action == alert.ActionNavigate {
			cmd := m.openBookings(msg.Alert.Event.AppointmentID())
			return m, cmd
		}
		return m, nil

	case feedChangedMsg:
		if msg.hint != "" {
			m.hint = msg.hint
		}
		cmd := m.refreshFeed()
		return m, cmd

	case storeChangedMsg:
		return m, tea.Batch(m.reloadFeed(), m.waitForStoreChange())

	case relabelTickMsg:
		cmd := m.feedView.Relabel(time.Time(msg))
		return m, tea.Batch(cmd, relabelTick())

	case feed.MarkAllReadMsg:
		return m, m.markAllRead()

	case feed.DeleteMsg:
		return m, m.deleteOne(msg.EventID)

	case feed.ClearAllMsg:
		return m, m.clearAll()

	case feed.OpenMsg:
		cmd := m.openBookings(msg.Event.AppointmentID())
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.core.End()
			return m, tea.Quit
		}
		if m.alerts.Active() {
			var cmd tea.Cmd
			m.alerts, cmd = m.alerts.Update(msg)
			return m, cmd
		}
		if m.currentView == ViewLogin || m.currentView == ViewCommand {
			break
		}
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	if m.alerts.Active() {
		// Non-key messages such as cursor blinks still reach the form.
		var cmd tea.Cmd
		m.alerts, cmd = m.alerts.Update(msg)
		next, viewCmd := m.updateActiveView(msg)
		return next, tea.Batch(cmd, viewCmd)
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey handles keys that work in every signed-in view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.core.End()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp || m.currentView == ViewBookings {
			m.currentView = ViewFeed
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Feed):
		m.currentView = ViewFeed
		return m, nil, true

	case key.Matches(msg, m.keys.Bookings):
		m.currentView = ViewBookings
		return m, nil, true

	case key.Matches(msg, m.keys.Refresh):
		m.hint = ""
		return m, m.core.Poller.RefreshNow(), true

	case key.Matches(msg, m.keys.Logout):
		next, cmd := m.logout()
		return next, cmd, true
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	case ViewBookings:
		m.bookingsView, cmd = m.bookingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m Model) handleSessionStarted(msg sessionStartedMsg) (Model, tea.Cmd) {
	if msg.err != nil {
		if msg.resumed {
			// No usable remembered session: show the form.
			if !errors.Is(msg.err, credential.ErrNotFound) {
				m.logger.Info("remembered session not resumed", "err", msg.err)
			}
			m.currentView = ViewLogin
			cmd := m.loginView.Start()
			return m, cmd
		}
		m.logger.Warn("sign-in failed", "err", msg.err)
		cmd := m.loginView.SetError(msg.err)
		return m, cmd
	}

	m.identity = msg.identity
	m.status = pollStatus{}
	m.hint = ""
	m.currentView = ViewFeed
	m.helpView.SetFooter(fmt.Sprintf("Signed in as %s (%s) · commands: %s",
		m.identity.DisplayName(), m.identity.Role, joinCommands()))
	cmd := m.refreshFeed()
	return m, cmd
}

func (m Model) handlePollResult(msg appsync.PollResultMsg) (Model, tea.Cmd) {
	wait := m.core.Poller.WaitForNextResult()
	if !m.isCurrent(msg.Identity) {
		return m, wait
	}

	if msg.Error != nil {
		// A failed cycle leaves the last good time in place.
		m.status.authExpired = msg.AuthExpired
		return m, wait
	}

	m.status = pollStatus{last: msg.At}
	bcmd := m.bookingsView.SetSnapshot(msg.Snapshot, msg.Identity.Role)
	fcmd := m.refreshFeed()
	return m, tea.Batch(wait, bcmd, fcmd)
}

// isCurrent reports whether id is the identity of the running session.
// The core is asked rather than m.identity, since poll results and
// alerts can arrive before the session-started message.
func (m Model) isCurrent(id model.Identity) bool {
	cur := m.core.Identity()
	return cur != nil && cur.ID == id.ID && cur.Role == id.Role
}

// refreshFeed copies the notifier state into the feed view.
func (m *Model) refreshFeed() tea.Cmd {
	state := m.core.Notifier.State()
	m.unread = state.Unread
	role := model.RoleUser
	if state.Identity != nil {
		role = state.Identity.Role
	}
	if state.PersistErr != nil {
		// Kept in memory; the next successful write catches storage up.
		m.logger.Debug("feed not persisted", "err", state.PersistErr)
	}
	return m.feedView.SetEvents(state.Events, role, m.now())
}

func (m *Model) openBookings(appointmentID int) tea.Cmd {
	m.currentView = ViewBookings
	return m.bookingsView.Focus(appointmentID)
}

func (m Model) logout() (Model, tea.Cmd) {
	core := m.core
	core.SignOut()
	m.identity = nil
	m.unread = 0
	m.status = pollStatus{}
	m.hint = ""
	m.alerts.DismissAll()
	m.feedView.SetEvents(nil, model.RoleUser, m.now())
	m.bookingsView.SetSnapshot(nil, model.RoleUser)
	m.currentView = ViewLogin
	cmd := m.loginView.Start()
	return m, cmd
}

// resume returns a command that starts the remembered session.
func (m Model) resume() tea.Cmd {
	core := m.core
	return func() tea.Msg {
		id, err := core.Resume(context.Background())
		return sessionStartedMsg{identity: id, err: err, resumed: true}
	}
}

func (m Model) signIn(sub login.SubmitMsg) tea.Cmd {
	core := m.core
	return func() tea.Msg {
		id, err := core.SignIn(context.Background(), sub.Credentials, sub.Remember)
		return sessionStartedMsg{identity: id, err: err}
	}
}

func (m Model) waitForStoreChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes.Changes()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func relabelTick() tea.Cmd {
	return tea.Tick(relabelInterval, func(t time.Time) tea.Msg {
		return relabelTickMsg(t)
	})
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), notify.BadgeLabel(m.unread), m.pollStatusText())
	content := m.renderContent()
	if m.alerts.Active() {
		content = m.layout.Center(m.alerts.View())
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) title() string {
	if m.identity == nil {
		return "shuttledesk"
	}
	return "shuttledesk · " + m.identity.DisplayName() +
		theme.RoleStyle(m.identity.Role).Render(string(m.identity.Role))
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	content := ""
	switch m.currentView {
	case ViewLogin:
		content = m.loginView.View()
	case ViewFeed:
		content = m.feedView.View()
	case ViewBookings:
		content = m.bookingsView.View()
	case ViewHelp:
		content = m.helpView.View()
	case ViewCommand:
		content = m.commandView.View()
	}
	return lipgloss.NewStyle().Height(m.layout.ContentHeight()).Render(content)
}

// pollStatusText returns a short string describing the poll state.
func (m Model) pollStatusText() string {
	switch {
	case m.identity == nil:
		return "signed out"
	case m.status.authExpired:
		return "⚠ session expired"
	case m.core.Poller.InFlight():
		return "polling..."
	case m.status.last.IsZero():
		return "waiting for first poll"
	default:
		return "updated " + notify.RelativeTime(m.status.last.UTC().Format(time.RFC3339Nano), m.now())
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.alerts.Active() {
		return "o open bookings | esc dismiss"
	}
	if m.status.authExpired && m.currentView != ViewLogin {
		return theme.WarningStyle.Render("Session expired. Press L to sign in again.")
	}
	if m.hint != "" && (m.currentView == ViewFeed || m.currentView == ViewBookings) {
		return m.hint
	}

	switch m.currentView {
	case ViewLogin:
		return "enter next | esc quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewBookings:
		return "tab status filter | n notifications | r poll | : command | ? help | q quit"
	default:
		return "m mark read | d delete | C clear | b bookings | r poll | : command | ? help | q quit"
	}
}
