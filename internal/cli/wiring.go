package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asynkron/aishell/internal/bootprobe"
	"github.com/asynkron/aishell/internal/config"
	"github.com/asynkron/aishell/internal/console"
	"github.com/asynkron/aishell/internal/core/codeblock"
	"github.com/asynkron/aishell/internal/core/runtime"
	"github.com/asynkron/aishell/internal/core/shell"
	"github.com/asynkron/aishell/internal/logging"
	"github.com/asynkron/aishell/internal/tui"
)

func (a *app) runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)

	name, llm, err := cfg.CurrentLLM()
	if err != nil {
		return fmt.Errorf("%w (edit %s or set OPENAI_API_KEY)", err, configLocation(cfg))
	}

	logger, closeLog, err := buildLogger(cfg.Logging, a.stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	logger.Info(ctx, "session starting",
		logging.Field("llm", name),
		logging.Field("model", llm.Model),
		logging.Field("stream", cfg.Global.StreamOutputMode),
		logging.Field("json", cfg.Global.JSONMode),
	)

	client, err := runtime.NewOpenAIClient(runtime.ClientOptions{
		APIKey:      llm.APIKey,
		Model:       llm.Model,
		BaseURL:     llm.APIURL,
		Temperature: cfg.Global.Temperature,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	_, environment := bootprobe.BuildAugmentation(bootprobe.NewContext())
	w := wiring{
		cfg:         cfg,
		model:       client,
		logger:      logger,
		metrics:     runtime.NewInMemoryMetrics(),
		environment: environment,
		retries:     a.opts.retries,
	}
	prompt := strings.TrimSpace(strings.Join(args, " "))

	if a.opts.tui {
		bridge := tui.NewBridge()
		session, err := w.session(bridge, bridge, bridge.Writer(), bridge.ErrorWriter())
		if err != nil {
			return err
		}
		return tui.Run(ctx, bridge, tui.Options{
			Handle:  session.Handle,
			Hint:    session.Hint,
			Initial: prompt,
		})
	}

	term := console.NewAuto(a.stdout)
	session, err := w.session(term, term, term.Writer(), term.ErrorWriter())
	if err != nil {
		return err
	}
	if a.opts.dialog || prompt == "" {
		return runDialog(ctx, session, term, newLineReader(a.stdin), prompt)
	}

	askCtx, stop := interruptible(ctx)
	defer stop()
	if err := session.Ask(askCtx, prompt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return errReported
	}
	return nil
}

func configLocation(cfg config.Config) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(config.DefaultDir(), "config.yaml")
}

// wiring holds what every session of one invocation shares.
type wiring struct {
	cfg         config.Config
	model       runtime.ChatModel
	logger      logging.Logger
	metrics     *runtime.InMemoryMetrics
	environment string
	retries     int
}

func (w wiring) session(display runtime.Display, printer Printer, stdout, stderr io.Writer) (*Session, error) {
	global := w.cfg.Global
	options := runtime.EngineOptions{
		SystemPrompt: runtime.BuildSystemPrompt(runtime.PromptOptions{
			UserContent: global.UserContent,
			JSONMode:    global.JSONMode,
			Environment: w.environment,
		}),
		Streaming:    global.StreamOutputMode,
		RefreshDelay: time.Duration(global.SleepTime * float64(time.Second)),
		Logger:       w.logger,
		Metrics:      w.metrics,
	}
	if global.JSONMode {
		options.Extractor = codeblock.JSONExtractor{OnInvalid: func(err error) {
			w.logger.Debug(context.Background(), "reply is not structured JSON", logging.Field("error", err.Error()))
		}}
	}
	if w.retries > 0 {
		retry := runtime.DefaultRetryConfig()
		retry.MaxRetries = w.retries
		options.Retry = retry
	}

	engine, err := runtime.NewEngine(w.model, display, options)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	runner := shell.NewRunner(shell.HostVariant(), shell.RunnerOptions{
		Stdout: stdout,
		Stderr: stderr,
		Logger: w.logger,
	})
	executor := shell.NewExecutor(runner, printer, shell.ExecutorOptions{
		Logger:   w.logger,
		Recorder: w.metrics,
	})

	return NewSession(engine, executor, printer, SessionOptions{
		Logger:  w.logger,
		Metrics: w.metrics,
		Hint:    runtime.NewHintBlock(runtime.CodeNumberingHint),
	}), nil
}

// buildLogger writes to the log file when enabled, otherwise to stderr at
// the console level. The returned func closes the log file.
func buildLogger(cfg config.LoggingConfig, stderr io.Writer) (logging.Logger, func(), error) {
	noop := func() {}
	if cfg.FileEnabled && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, noop, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, noop, fmt.Errorf("open log file: %w", err)
		}
		return logging.New(logging.ParseLevel(cfg.FileLevel), f), func() { _ = f.Close() }, nil
	}

	level := logging.ParseLevel(cfg.ConsoleLevel)
	if level == logging.LogLevelOff {
		return &logging.NoOpLogger{}, noop, nil
	}
	return logging.NewConsole(level, stderr), noop, nil
}
