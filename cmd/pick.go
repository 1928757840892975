package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/output"
	"github.com/drengskapur/codepick/pkg/session"
	"github.com/drengskapur/codepick/pkg/tui"
)

// runPick opens the project, lets the user choose files (or selects all
// matches in batch mode), and delivers the prompt.
func runPick(cmd *cobra.Command, opts config.Options, logger *zap.Logger) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	start := time.Now()
	set, final, ok, err := choose(ctx, opts, logger)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("Selection cancelled")
		return nil
	}

	doc, err := output.Render(set, output.Options{
		Format:      final.OutputFormat,
		LineNumbers: final.LineNumbers,
		NoCodeblock: final.NoCodeblock,
	}, logger)
	if err != nil {
		return err
	}
	if err := output.Deliver(doc, output.Destination{
		Stdout:    cmd.OutOrStdout(),
		File:      final.OutputFile,
		Clipboard: final.Clipboard,
	}, logger); err != nil {
		return err
	}

	output.PrintSummary(cmd.ErrOrStderr(), set, doc, output.SummaryOptions{
		TokenMap: final.TokenMap,
		Color:    output.ColorEnabled(os.Stderr),
	})
	logger.Info("Prompt assembled",
		zap.Int("files", len(doc.Files)),
		zap.Int("tokens", doc.Tokens),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// choose runs sessions until the user confirms or cancels. Applying new
// settings in the picker reopens the project with them. The returned
// options are the ones in effect when the selection was made.
func choose(ctx context.Context, opts config.Options, logger *zap.Logger) (session.SelectionSet, config.Options, bool, error) {
	for {
		sess, err := session.Open(ctx, opts, logger)
		if err != nil {
			return session.SelectionSet{}, opts, false, err
		}

		if !opts.Interactive {
			set, err := batch(ctx, sess)
			closeSession(sess, logger)
			return set, opts, err == nil, err
		}

		res, err := tui.Run(ctx, sess, logger)
		if err != nil {
			closeSession(sess, logger)
			return session.SelectionSet{}, opts, false, err
		}

		switch res.Outcome {
		case tui.OutcomeRescan:
			if err := sess.Save(); err != nil {
				logger.Debug("Selection not persisted before rescan", zap.Error(err))
			}
			closeSession(sess, logger)
			opts = res.Options
			logger.Info("Reloading with new settings",
				zap.Bool("hidden", opts.Hidden),
				zap.Bool("followSymlinks", opts.FollowSymlinks),
				zap.String("tokenizer", opts.Tokenizer))
			continue
		case tui.OutcomeConfirmed:
			set, err := sess.Finish(ctx, res.Pending)
			closeSession(sess, logger)
			return set, opts, err == nil, err
		default:
			closeSession(sess, logger)
			return session.SelectionSet{}, opts, false, nil
		}
	}
}

func batch(ctx context.Context, sess *session.Session) (session.SelectionSet, error) {
	if err := sess.CountAll(ctx); err != nil {
		return session.SelectionSet{}, err
	}
	return sess.Finish(ctx, nil)
}

func closeSession(sess *session.Session, logger *zap.Logger) {
	if err := sess.Close(); err != nil {
		logger.Warn("Failed to close session", zap.Error(err))
	}
}
