package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriscow/meetsl-go/internal/config"
	"github.com/chriscow/meetsl-go/internal/statusapi"
	"github.com/chriscow/meetsl-go/pkg/capture"
	"github.com/chriscow/meetsl-go/pkg/plugin"
	_ "github.com/chriscow/meetsl-go/pkg/plugin/fake"   // Import to register fake plugins
	_ "github.com/chriscow/meetsl-go/pkg/plugin/openai" // Import to register OpenAI plugins
	"github.com/chriscow/meetsl-go/pkg/session"
	"github.com/chriscow/meetsl-go/pkg/suggest"
	"github.com/chriscow/meetsl-go/pkg/version"
	"github.com/chriscow/meetsl-go/pkg/voice"
)

var rootCmd = &cobra.Command{
	Use:   "meetsl",
	Short: "Live sign language captions for meetings",
	Long: `meetsl streams camera frames to a sign recognizer, turns the predictions
into stable captions and speaks them, either directly or through an
LLM rewrite that the signer can confirm.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Caption session commands",
}

var sessionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a caption session until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := setupLogger()
		logger.Info("Starting session",
			slog.String("service", "meetsl"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("recognizer", cfg.Transport.URL),
			slog.String("mode", cfg.Session.Mode))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runSession(ctx, cfg, logger)
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest TOKEN[:CONF]...",
	Short: "Ask the configured suggester to rewrite a token sequence once",
	Long: `Send one suggestion request and print the result as JSON. Each token may
carry a confidence, e.g. HELLO:0.92 MEETING:0.6. Tokens without one are
treated as fully confident.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		speechContext, _ := cmd.Flags().GetString("context")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		logger := setupLogger()
		tokens, err := parseTokens(args)
		if err != nil {
			return err
		}

		suggester, err := buildSuggester(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
		defer cancelTimeout()

		logger.Info("Requesting suggestion",
			slog.String("provider", cfg.Suggest.Provider),
			slog.Int("tokens", len(tokens)))

		s, err := suggester.Suggest(ctx, suggest.Request{
			Tokens:              tokens,
			RecentSpeechContext: speechContext,
			Domain:              cfg.Assist.Domain,
		})
		if err != nil {
			return fmt.Errorf("suggest: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Plugin management commands",
}

var pluginListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List registered plugins",
	Long: `List all registered plugins or plugins of a specific kind.
Available kinds: llm, tts, stt, suggest`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}

		plugins := plugin.List(kind)
		if len(plugins) == 0 {
			if kind == "" {
				fmt.Println("No plugins registered")
			} else {
				fmt.Printf("No plugins registered for kind: %s\n", kind)
			}
			return nil
		}

		fmt.Printf("%-8s %-12s %-10s %s\n", "KIND", "NAME", "VERSION", "DESCRIPTION")
		fmt.Println("------------------------------------------------------------")
		for _, p := range plugins {
			ver := p.Version
			if ver == "" {
				ver = "N/A"
			}
			description := p.Description
			if description == "" {
				description = "No description"
			}
			fmt.Printf("%-8s %-12s %-10s %s\n", p.Kind, p.Name, ver, description)
		}

		logger.Debug("Listed plugins",
			slog.Int("count", len(plugins)),
			slog.String("filter_kind", kind))
		return nil
	},
}

var pluginLoadCmd = &cobra.Command{
	Use:   "load [directory]",
	Short: "Load dynamic plugins from directory (Linux only with -tags=plugindyn)",
	Long: `Load .so plugin files from the specified directory.
If no directory is specified, uses MEETSL_PLUGIN_PATH or defaults to
/usr/local/lib/meetsl/plugins.

This feature is only available on Linux with the plugindyn build tag:
  go build -tags=plugindyn

Each plugin .so file must export a RegisterPlugins() error function.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		pluginDir := ""
		if len(args) > 0 {
			pluginDir = args[0]
		}
		pluginDir = plugin.PluginDir(pluginDir)

		logger.Info("Loading dynamic plugins", slog.String("directory", pluginDir))
		n, err := plugin.LoadDynamicPlugins(pluginDir)
		if err != nil {
			logger.Error("Failed to load dynamic plugins", slog.String("error", err.Error()))
			return err
		}
		logger.Info("Dynamic plugin loading completed", slog.Int("loaded", n))
		return nil
	},
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("MEETSL_LOG_FORMAT")
	logLevel := os.Getenv("MEETSL_LOG_LEVEL")

	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}

	var handler slog.Handler
	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads --config and applies any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("url", &cfg.Transport.URL)
	override("session-id", &cfg.Session.ID)
	override("mode", &cfg.Session.Mode)
	override("camera-dir", &cfg.Session.CameraDir)
	override("status-addr", &cfg.Status.Addr)
	override("provider", &cfg.Suggest.Provider)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runSession(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	sessCfg, err := cfg.ToSession()
	if err != nil {
		return err
	}

	suggester, err := buildSuggester(cfg)
	if err != nil {
		return err
	}

	gate := voice.NewSpeakingGate()
	speaker, err := buildSpeaker(cfg, gate, logger)
	if err != nil {
		return err
	}

	heard, err := buildSpeechInput(cfg)
	if err != nil {
		return err
	}

	sess, err := session.New(sessCfg, session.Deps{
		Camera:      capture.NewDirCamera(cfg.Session.CameraDir, logger),
		Suggester:   suggester,
		Speaker:     speaker,
		SpeechInput: heard,
		Gate:        gate,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	logger.Info("Session created",
		slog.String("session_id", sess.ID()),
		slog.String("endpoint", sess.Endpoint()))

	if cfg.Status.Addr != "" {
		apiCtx, stopAPI := context.WithCancel(ctx)
		defer stopAPI()
		go func() {
			err := statusapi.Serve(apiCtx, cfg.Status.Addr, statusapi.NewHandler(sess, logger), logger)
			if err != nil {
				logger.Error("Status API failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Session failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Session ended", slog.String("session_id", sess.ID()))
	return nil
}

// parseTokens turns TOKEN[:CONF] arguments into suggestion inputs.
func parseTokens(args []string) ([]suggest.TokenInput, error) {
	base := time.Now().UnixMilli()
	tokens := make([]suggest.TokenInput, 0, len(args))
	for i, arg := range args {
		token, conf := arg, 1.0
		if name, raw, ok := strings.Cut(arg, ":"); ok {
			c, err := strconv.ParseFloat(raw, 64)
			if err != nil || c < 0 || c > 1 {
				return nil, fmt.Errorf("token %q: confidence must be a number in [0, 1]", arg)
			}
			token, conf = name, c
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("token %q: empty token", arg)
		}
		tokens = append(tokens, suggest.TokenInput{Token: token, Confidence: conf, TS: base + int64(i)})
	}
	return tokens, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a TOML config file")

	sessionRunCmd.Flags().String("url", "", "Recognizer websocket base URL")
	sessionRunCmd.Flags().String("session-id", "", "Session ID (generated when empty)")
	sessionRunCmd.Flags().String("mode", "", "Delivery mode: direct or assist")
	sessionRunCmd.Flags().String("camera-dir", "", "Directory the camera frames are written to")
	sessionRunCmd.Flags().String("status-addr", "", "Status API listen address (empty disables)")

	suggestCmd.Flags().String("provider", "", "Suggest provider (http, llm, fake)")
	suggestCmd.Flags().String("context", "", "Recent speech context to send along")
	suggestCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")

	sessionCmd.AddCommand(sessionRunCmd)
	pluginCmd.AddCommand(pluginListCmd, pluginLoadCmd)
	rootCmd.AddCommand(versionCmd, sessionCmd, suggestCmd, pluginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
