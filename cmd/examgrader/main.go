package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examgrader/internal/grading"
	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/llm"
	"github.com/pavelanni/examgrader/internal/llm/prompts"
	"github.com/pavelanni/examgrader/internal/model"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examgrader",
		Short: "Grade exam answers of every question type, with AI-assisted essay scoring",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), batchCmd(), runsCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examgrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// addEngineFlags registers the flags that configure grading.
func addEngineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("lang", "l", "en", "Feedback language (en, vi)")
	f.String("llm-provider", "openai", "Essay grading provider (openai, gemini, none)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("gemini-key", "", "Gemini API key (or set EXAMGRADER_GEMINI_KEY)")
	f.String("gemini-model", "gemini-1.5-flash", "Gemini model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Grading prompt variant (strict, standard, lenient)")
	f.String("prompts-dir", "", "Directory with essay_<variant>.txt templates overriding the built-in ones")
	f.Int("llm-retries", 0, "Retries for a failed essay grading call")
	f.Duration("ai-timeout", grading.DefaultEssayTimeout, "Timeout for one essay grading call")
	f.Int("concurrency", grading.DefaultConcurrency, "Questions graded at once in a batch")
	f.Float64("ordering-threshold", grading.DefaultOrderingThreshold, "Fraction of positions needed for an ordering answer to count as correct")
	f.Float64("fill-blank-threshold", grading.DefaultFillBlankThreshold, "Fraction of blanks needed for a fill-blank answer to count as correct")
	f.Float64("text-threshold", grading.DefaultTextThreshold, "Fraction of the AI score needed for a text answer to count as correct")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examgrader")
	v.AddConfigPath("/etc/examgrader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// essayCapability is what the engine needs from an LLM client, plus the
// health check run at serve start.
type essayCapability interface {
	model.EssayGrader
	Ping(ctx context.Context) error
}

// engineSetup is a configured engine and what it was built from.
type engineSetup struct {
	engine  *grading.Engine
	catalog *appI18n.Catalog
	essay   essayCapability
	info    model.GraderInfo
	close   func()
}

func buildEngine(ctx context.Context, v *viper.Viper) (*engineSetup, error) {
	lang := v.GetString("lang")
	cat, err := appI18n.New(lang)
	if err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	if dir := v.GetString("prompts-dir"); dir != "" {
		if err := prompts.Load(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
		}
		slog.Info("loaded prompt templates", "dir", dir)
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	llmOpts := []llm.Option{
		llm.WithVariant(promptVariant),
		llm.WithRetries(v.GetInt("llm-retries")),
	}
	if !prompts.IsValidVariant(promptVariant) {
		promptVariant = string(prompts.PromptStandard)
	}

	setup := &engineSetup{
		catalog: cat,
		info:    model.GraderInfo{PromptVariant: promptVariant},
		close:   func() {},
	}

	provider := strings.ToLower(strings.TrimSpace(v.GetString("llm-provider")))
	switch provider {
	case "openai":
		setup.essay = llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), llmOpts...)
		slog.Info("essay grading via OpenAI-compatible API", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	case "gemini":
		g, err := llm.NewGemini(ctx, v.GetString("gemini-key"), v.GetString("gemini-model"), llmOpts...)
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
		setup.essay = g
		setup.close = func() { _ = g.Close() }
		slog.Info("essay grading via Gemini", "model", v.GetString("gemini-model"))
	case "none", "":
		provider = "none"
		slog.Warn("no essay grading provider, short answers and essays use exact-match fallback")
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, gemini or none)", provider)
	}
	setup.info.Provider = provider

	opts := []grading.Option{
		grading.WithCatalog(cat),
		grading.WithConcurrency(v.GetInt("concurrency")),
		grading.WithEssayTimeout(v.GetDuration("ai-timeout")),
		grading.WithOrderingThreshold(v.GetFloat64("ordering-threshold")),
		grading.WithFillBlankThreshold(v.GetFloat64("fill-blank-threshold")),
		grading.WithTextThreshold(v.GetFloat64("text-threshold")),
	}
	if setup.essay != nil {
		opts = append(opts, grading.WithEssayGrader(setup.essay))
	}
	setup.engine = grading.New(opts...)
	return setup, nil
}

// openOutput returns stdout for "" or "-", otherwise a new file.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

var errNoDB = errors.New("database path is required: set --db or EXAMGRADER_DB")
