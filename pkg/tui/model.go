// Package tui is the interactive file picker. It drives a session's tree
// from key presses and applies background token counts as they arrive.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/session"
	"github.com/drengskapur/codepick/pkg/tree"
)

// State is the controller mode.
type State int

const (
	TreeNormal State = iota
	TreeNavigating
	ExtNormal
	ExtFiltering
	Settings
	Confirmed
	Cancelled
)

func (s State) String() string {
	switch s {
	case TreeNormal:
		return "tree"
	case TreeNavigating:
		return "tree-navigating"
	case ExtNormal:
		return "extensions"
	case ExtFiltering:
		return "extensions-filtering"
	case Settings:
		return "settings"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the loop has ended.
func (s State) Terminal() bool { return s == Confirmed || s == Cancelled }

func (s State) inTree() bool { return s == TreeNormal || s == TreeNavigating }

// Outcome is how the picker ended.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeConfirmed
	// OutcomeRescan asks the caller to reload the project with new options.
	OutcomeRescan
)

// countBatch bounds how many results one message carries.
const countBatch = 64

// tokensCountedMsg carries background count results to Update.
type tokensCountedMsg struct {
	results []session.Counted
	done    bool
}

// Model is the bubbletea model of the picker.
type Model struct {
	sess   *session.Session
	tree   *tree.Tree
	logger *zap.Logger
	keys   keyMap

	state   State
	outcome Outcome

	cursor    int
	extCursor int

	// gated extensions have been switched off in the extension pane. The
	// tree masks their files without touching their selection.
	gated map[string]bool

	filter  textinput.Model
	spinner spinner.Model

	settings       config.Options
	settingsCursor int

	ctx      context.Context
	cancel   context.CancelFunc
	results  <-chan session.Counted
	counting bool

	warningsSeen int
	status       string

	width  int
	height int
}

// New builds the picker for sess. Counting starts in Init.
func New(ctx context.Context, sess *session.Session, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Placeholder = "filter extensions"
	ti.Prompt = "/ "
	ti.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	cctx, cancel := context.WithCancel(ctx)
	m := Model{
		sess:     sess,
		tree:     sess.Tree(),
		logger:   logger,
		keys:     defaultKeyMap(),
		state:    TreeNormal,
		gated:    map[string]bool{},
		filter:   ti,
		spinner:  sp,
		settings: sess.Options(),
		ctx:      cctx,
		cancel:   cancel,
		width:    100,
		height:   30,
	}
	m.results = sess.StartCounting(cctx, m.tree.Visible())
	m.counting = true
	return m
}

// Init starts the spinner and the result pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForCounts(m.results))
}

// waitForCounts blocks for one result, then drains whatever else is ready.
func waitForCounts(ch <-chan session.Counted) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return tokensCountedMsg{done: true}
		}
		msg := tokensCountedMsg{results: []session.Counted{c}}
		for len(msg.results) < countBatch {
			select {
			case c, ok := <-ch:
				if !ok {
					msg.done = true
					return msg
				}
				msg.results = append(msg.results, c)
			default:
				return msg
			}
		}
		return msg
	}
}

// State returns the current mode.
func (m Model) State() State { return m.state }

// Outcome returns how the loop ended. Only meaningful once State is
// terminal.
func (m Model) Outcome() Outcome { return m.outcome }

// Settings returns the options edited in the settings popup.
func (m Model) Settings() config.Options { return m.settings }

// Results is the channel of counts still in flight.
func (m Model) Results() <-chan session.Counted { return m.results }

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state.Terminal() {
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.counting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tokensCountedMsg:
		for _, c := range msg.results {
			m.sess.Apply(c)
		}
		m.noteWarnings()
		if msg.done {
			m.counting = false
			m.logger.Debug("Token counts applied", zap.Int("selectedTokens", m.tree.SelectedTokens()))
			return m, nil
		}
		return m, waitForCounts(m.results)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) noteWarnings() {
	w := m.sess.Warnings()
	if len(w) > m.warningsSeen {
		m.status = fmt.Sprintf("%d files skipped: %s", len(w), w[len(w)-1].String())
		m.warningsSeen = len(w)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		return m.finish(Cancelled, OutcomeCancelled)
	}
	switch m.state {
	case Settings:
		return m.handleSettings(msg)
	case ExtFiltering:
		return m.handleFiltering(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Confirm):
		return m.finish(Confirmed, OutcomeConfirmed)
	case key.Matches(msg, m.keys.Quit):
		return m.finish(Cancelled, OutcomeCancelled)
	case key.Matches(msg, m.keys.Pane):
		if m.state.inTree() {
			m.state = ExtNormal
		} else {
			m.state = TreeNormal
		}
		return m, nil
	case key.Matches(msg, m.keys.Settings):
		m.settings = m.sess.Options()
		m.settingsCursor = 0
		m.state = Settings
		return m, nil
	}

	if m.state == ExtNormal {
		m.handleExtKey(msg)
		return m, nil
	}
	m.handleTreeKey(msg)
	return m, nil
}

func (m Model) finish(st State, out Outcome) (tea.Model, tea.Cmd) {
	m.state = st
	m.outcome = out
	if st == Cancelled {
		m.cancel()
	}
	m.logger.Debug("Picker finished", zap.Stringer("state", st), zap.Int("selected", m.tree.SelectedCount()))
	return m, tea.Quit
}

func (m *Model) handleTreeKey(msg tea.KeyMsg) {
	visible := m.tree.Visible()
	m.cursor = clamp(m.cursor, len(visible))

	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = clamp(m.cursor-1, len(visible))
		m.state = TreeNavigating
		return
	case key.Matches(msg, m.keys.Down):
		m.cursor = clamp(m.cursor+1, len(visible))
		m.state = TreeNavigating
		return
	}
	m.state = TreeNormal

	switch {
	case key.Matches(msg, m.keys.All):
		m.tree.SelectAll(nil)
	case key.Matches(msg, m.keys.None):
		m.tree.DeselectAll(nil)
	case key.Matches(msg, m.keys.Invert):
		m.tree.Invert(nil)
	}
	if len(visible) == 0 {
		return
	}
	id := visible[m.cursor]

	switch {
	case key.Matches(msg, m.keys.Toggle):
		m.tree.Toggle(id)
	case key.Matches(msg, m.keys.Expand):
		m.tree.Expand(id)
	case key.Matches(msg, m.keys.Collapse):
		if m.tree.Collapse(id) {
			return
		}
		parent := m.tree.Parent(id)
		if parent == tree.None {
			m.state = ExtNormal
			return
		}
		m.tree.Collapse(parent)
		for i, v := range m.tree.Visible() {
			if v == parent {
				m.cursor = i
				break
			}
		}
	}
}

// gateMask accepts files whose extension is not gated.
func (m *Model) gateMask() tree.Predicate {
	if len(m.gated) == 0 {
		return nil
	}
	gated := m.gated
	return func(n *tree.Node) bool { return !gated[n.Extension()] }
}

func (m *Model) applyGate() {
	m.tree.SetMask(m.gateMask())
	m.cursor = clamp(m.cursor, len(m.tree.Visible()))
}

// extensions returns the rows of the extension pane after the filter.
func (m *Model) extensions() []tree.ExtStat {
	all := m.tree.Extensions()
	q := m.filter.Value()
	if q == "" {
		return all
	}
	out := all[:0]
	for _, e := range all {
		if fuzzy.MatchFold(q, e.Label()) {
			out = append(out, e)
		}
	}
	return out
}

// setExtension gates or ungates ext. File selections are kept either way.
func (m *Model) setExtension(ext string, on bool) {
	if on {
		delete(m.gated, ext)
	} else {
		m.gated[ext] = true
	}
}

func (m *Model) handleExtKey(msg tea.KeyMsg) {
	exts := m.extensions()
	m.extCursor = clamp(m.extCursor, len(exts))

	switch {
	case key.Matches(msg, m.keys.Up):
		m.extCursor = clamp(m.extCursor-1, len(exts))
	case key.Matches(msg, m.keys.Down):
		m.extCursor = clamp(m.extCursor+1, len(exts))
	case key.Matches(msg, m.keys.Filter):
		m.state = ExtFiltering
		m.filter.Focus()
	case key.Matches(msg, m.keys.Expand):
		m.state = TreeNormal
	case key.Matches(msg, m.keys.Toggle):
		if len(exts) > 0 {
			e := exts[m.extCursor]
			m.setExtension(e.Ext, m.gated[e.Ext])
			m.applyGate()
		}
	case key.Matches(msg, m.keys.All):
		for _, e := range exts {
			m.setExtension(e.Ext, true)
		}
		m.applyGate()
	case key.Matches(msg, m.keys.None):
		for _, e := range exts {
			m.setExtension(e.Ext, false)
		}
		m.applyGate()
	case key.Matches(msg, m.keys.Invert):
		for _, e := range exts {
			m.setExtension(e.Ext, m.gated[e.Ext])
		}
		m.applyGate()
	}
}

func (m Model) handleFiltering(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter.Blur()
		m.state = ExtNormal
		return m, nil
	case tea.KeyEsc:
		m.filter.Blur()
		m.filter.SetValue("")
		m.state = ExtNormal
		return m, nil
	case tea.KeyUp, tea.KeyDown, tea.KeySpace:
		// Navigation and toggling keep working while typing.
		m.handleExtKey(msg)
		m.state = ExtFiltering
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.extCursor = clamp(m.extCursor, len(m.extensions()))
	return m, cmd
}

func (m Model) handleSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(allSettings)
	switch {
	case key.Matches(msg, m.keys.Back):
		m.settings = m.sess.Options()
		m.state = TreeNormal
	case key.Matches(msg, m.keys.Up):
		m.settingsCursor = (m.settingsCursor + n - 1) % n
	case key.Matches(msg, m.keys.Down):
		m.settingsCursor = (m.settingsCursor + 1) % n
	case key.Matches(msg, m.keys.Toggle), key.Matches(msg, m.keys.Expand):
		allSettings[m.settingsCursor].cycle(&m.settings, 1)
	case key.Matches(msg, m.keys.Collapse):
		allSettings[m.settingsCursor].cycle(&m.settings, -1)
	case key.Matches(msg, m.keys.Confirm):
		m.state = Confirmed
		m.outcome = OutcomeRescan
		m.cancel()
		m.logger.Debug("Settings applied, rescanning",
			zap.Bool("hidden", m.settings.Hidden),
			zap.Bool("followSymlinks", m.settings.FollowSymlinks),
			zap.String("tokenizer", m.settings.Tokenizer))
		return m, tea.Quit
	}
	return m, nil
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
