// Package cli wires configuration, the turn engine, the shell executor and
// the console into the aishell command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/asynkron/aishell/internal/config"
)

// errReported marks failures that were already shown to the user.
var errReported = errors.New("reported")

type options struct {
	configPath string
	llm        string
	model      string
	dialog     bool
	stream     bool
	json       bool
	tui        bool
	retries    int
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	opts   options
}

// Run executes the aishell command line with the provided arguments.
// It returns a POSIX-style exit code indicating whether execution succeeded.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine, but other errors should be surfaced to help with debugging.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
			return 1
		}
	}

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "aishell [question...]",
		Short: "Terminal assistant that answers questions and runs the code it suggests",
		Long: "aishell sends your question to an OpenAI compatible model and renders the reply.\n" +
			"In dialog mode the numbered code blocks of the last reply can be run by typing their number.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "path to config.yaml (default "+config.DefaultDir()+"/config.yaml)")

	local := root.Flags()
	local.BoolVarP(&a.opts.dialog, "dialog", "d", false, "start an interactive dialog, optionally seeded with the question")
	local.StringVar(&a.opts.llm, "llm", "", "name of the supported_llms entry to use")
	local.StringVar(&a.opts.model, "model", "", "override the model of the selected LLM")
	local.BoolVar(&a.opts.stream, "stream", false, "render the reply while it streams in")
	local.BoolVar(&a.opts.json, "json", false, "ask for structured {cmd, info} replies")
	local.BoolVar(&a.opts.tui, "tui", false, "run the dialog in a full-screen terminal UI")
	local.IntVar(&a.opts.retries, "retries", 0, "retry rate-limited or failed model calls this many times")

	root.AddCommand(a.configCommand())
	return root
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with API keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.opts.configPath)
			if err != nil {
				return err
			}
			if err := config.Render(cmd.OutOrStdout(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nProblems:\n%v\n", err)
			}
			return nil
		},
	}
}

// applyFlags lets explicitly set flags override the loaded configuration.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("llm") {
		cfg.Global.CurrentLLM = a.opts.llm
	}
	if flags.Changed("stream") {
		cfg.Global.StreamOutputMode = a.opts.stream
	}
	if flags.Changed("json") {
		cfg.Global.JSONMode = a.opts.json
	}
	if flags.Changed("model") {
		if name, ok := cfg.ResolveLLM(cfg.Global.CurrentLLM); ok {
			llm := cfg.SupportedLLMs[name]
			llm.Model = a.opts.model
			cfg.SupportedLLMs[name] = llm
		}
	}
}
