package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/session"
)

// Result is what the picker hands back to the caller.
type Result struct {
	Outcome Outcome
	// Options holds the edited settings when Outcome is OutcomeRescan.
	Options config.Options
	// Pending delivers counts still in flight; pass it to session.Finish.
	Pending <-chan session.Counted
}

// Run shows the picker on the terminal until it reaches a terminal state.
func Run(ctx context.Context, sess *session.Session, logger *zap.Logger, opts ...tea.ProgramOption) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := New(ctx, sess, logger)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		m.cancel()
		logger.Error("Picker failed", zap.Error(err))
		return Result{}, fmt.Errorf("interactive picker failed: %w", err)
	}
	fm, ok := final.(Model)
	if !ok {
		m.cancel()
		return Result{}, fmt.Errorf("interactive picker returned %T", final)
	}
	if !fm.state.Terminal() {
		fm.cancel()
		return Result{Outcome: OutcomeCancelled}, nil
	}
	return Result{Outcome: fm.outcome, Options: fm.settings, Pending: fm.results}, nil
}
