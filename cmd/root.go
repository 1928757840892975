package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/drengskapur/codepick/pkg/config"
	"github.com/drengskapur/codepick/pkg/logging"
	"github.com/drengskapur/codepick/pkg/token"
	"github.com/drengskapur/codepick/pkg/tokenmap"
	"github.com/drengskapur/codepick/pkg/tree"
	"github.com/drengskapur/codepick/pkg/version"
)

// rootFlags holds flag values that do not map one-to-one onto
// config.Options fields.
type rootFlags struct {
	opts          config.Options
	sort          string
	outputFormat  string
	noCache       bool
	noInteractive bool
	configPath    string
	debug         bool
	logFile       string
}

// NewRootCmd builds the codepick command tree.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{opts: config.Defaults()}

	root := &cobra.Command{
		Use:   config.AppName + " [path]",
		Short: "Interactively pick project files and assemble them into an LLM prompt",
		Long: `codepick scans a project, shows its files as a selectable tree with live token
counts, and writes the chosen files as a single prompt to stdout, a file, or the
clipboard. Include or extension flags skip the picker and select every match.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, args)
		},
	}

	fl := root.Flags()
	o := &f.opts
	fl.StringSliceVarP(&o.Include, "include", "i", nil, "Glob patterns to include (selects matches without the picker)")
	fl.StringSliceVarP(&o.Exclude, "exclude", "e", nil, "Glob patterns to exclude")
	fl.StringSliceVar(&o.Extensions, "extensions", nil, "File extensions to include, e.g. go,md")
	fl.BoolVar(&o.IncludePriority, "include-priority", false, "Let include patterns win over exclude patterns")
	fl.BoolVar(&o.Hidden, "hidden", false, "Include hidden files and directories")
	fl.BoolVarP(&o.FollowSymlinks, "follow-symlinks", "L", false, "Follow symbolic links")
	fl.BoolVar(&o.NoIgnore, "no-ignore", false, "Do not read .gitignore and .ignore files")
	fl.BoolVar(&o.NoDefaultExcludes, "no-default-excludes", false, "Do not apply the built-in exclude list")
	fl.StringVar(&f.sort, "sort", string(tree.NameAsc), "Sort order: name-asc, name-desc, date-asc, date-desc")
	fl.StringVarP(&o.Tokenizer, "tokenizer", "t", token.Default, "Tokenizer: o200k, cl100k, p50k, p50k_edit, r50k, simple")
	fl.BoolVar(&o.TokenMap, "token-map", false, "Print the token map after the summary")
	fl.IntVar(&o.TokenMapLines, "token-map-lines", tokenmap.DefaultMaxLines, "Maximum token map rows")
	fl.Float64Var(&o.TokenMapMinPercent, "token-map-min-percent", tokenmap.DefaultMinPercent, "Minimum share of tokens for a token map row")
	fl.BoolVar(&f.noCache, "no-cache", false, "Neither read nor write the scan cache")
	fl.BoolVar(&o.Rescan, "rescan", false, "Ignore the cached scan and walk the project again")
	fl.StringVar(&o.CacheDir, "cache-dir", "", "Cache directory (default: user cache dir)")
	fl.IntVar(&o.Workers, "workers", runtime.NumCPU(), "Parallel scan and count workers")
	fl.BoolVar(&f.noInteractive, "no-interactive", false, "Select every matched file without the picker")
	fl.StringVarP(&f.outputFormat, "output-format", "F", string(config.FormatMarkdown), "Output format: markdown, json, xml")
	fl.StringVarP(&o.OutputFile, "output-file", "O", "", "Write the prompt to this file")
	fl.BoolVar(&o.Clipboard, "clipboard", false, "Copy the prompt to the clipboard")
	fl.BoolVarP(&o.LineNumbers, "line-numbers", "l", false, "Prefix source lines with line numbers")
	fl.BoolVar(&o.NoCodeblock, "no-codeblock", false, "Do not wrap file contents in fenced code blocks")
	fl.StringVar(&f.configPath, "config", "", "Config file (default: user config dir/codepick/config.toml)")
	fl.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fl.StringVar(&f.logFile, "log-file", "", "Write logs to this file")

	root.AddCommand(newVersionCmd())
	return root
}

// options resolves flags, the config file, and defaults into validated
// options. Flags win over the file.
func (f *rootFlags) options(cmd *cobra.Command, args []string, logger *zap.Logger) (config.Options, error) {
	o := f.opts
	if len(args) == 1 {
		o.Path = args[0]
	}
	o.Sort = tree.SortKey(f.sort)
	o.UseCache = !f.noCache

	format, err := config.ParseOutputFormat(f.outputFormat)
	if err != nil {
		return o, err
	}
	o.OutputFormat = format

	file, source, err := config.LoadFile(f.configPath, logger)
	if err != nil {
		return o, err
	}
	if source != "" {
		logger.Debug("Loaded config file", zap.String("config", source))
	}
	o.Merge(file, cmd.Flags())

	if err := o.Validate(); err != nil {
		logger.Error("Invalid options", zap.Error(err))
		return o, err
	}
	return o, nil
}

func (f *rootFlags) interactive() bool {
	if f.noInteractive || len(f.opts.Include) > 0 || len(f.opts.Extensions) > 0 {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func (f *rootFlags) run(cmd *cobra.Command, args []string) error {
	interactive := f.interactive()
	v := version.Get()
	if err := logging.Setup(logging.Options{
		Debug:      f.debug,
		AppName:    config.AppName,
		AppVersion: v.Version,
		File:       f.logFile,
		Quiet:      true,
		Discard:    interactive,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := logging.Logger

	opts, err := f.options(cmd, args, logger)
	if err != nil {
		return err
	}
	opts.Interactive = interactive && !opts.HasSelectionFlags()
	logger.Debug("Resolved options",
		zap.String("path", opts.Path),
		zap.Bool("interactive", opts.Interactive),
		zap.String("tokenizer", opts.Tokenizer),
		zap.Int("workers", opts.Workers))

	return runPick(cmd, opts, logger)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
