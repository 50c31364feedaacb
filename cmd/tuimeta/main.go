// Package main provides the CLI entrypoint for tuimeta.
package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuimeta/internal/api"
	"github.com/verte-zerg/tuimeta/internal/app"
	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/config"
	"github.com/verte-zerg/tuimeta/internal/history"
	"github.com/verte-zerg/tuimeta/internal/historyui"
	"github.com/verte-zerg/tuimeta/internal/lang"
	"github.com/verte-zerg/tuimeta/internal/logging"
	"github.com/verte-zerg/tuimeta/internal/model"
	"github.com/verte-zerg/tuimeta/internal/report"
	"github.com/verte-zerg/tuimeta/internal/speech"
	"github.com/verte-zerg/tuimeta/internal/store"
	"github.com/verte-zerg/tuimeta/internal/tui"
)

const (
	defaultServiceURL = "http://localhost:8000"
	defaultTimeout    = 30 * time.Second
	defaultSpeechLang = "hi-IN"
	defaultKeyboard   = "hindi"
	defaultLogLevel   = "info"
)

var (
	serviceURL     string
	serviceTimeout time.Duration
	logDir         string
	logLevel       string
	dbPath         string
	configPath     string

	speechCommand string
	speechLang    string
	keyboardLang  string

	historyLang    string
	historyLabel   string
	historyOffline bool
	assumeYes      bool
)

func main() {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()
	logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuimeta",
		Short:         "Multilingual metaphor detector",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runAnalyzerCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serviceURL, "url", defaultServiceURL, "classification service base URL")
	pf.DurationVar(&serviceTimeout, "timeout", defaultTimeout, "per-request timeout")
	pf.StringVar(&logDir, "log-dir", config.DefaultLogDir(), "diagnostics log directory")
	pf.StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&dbPath, "db", config.DefaultDBPath(), "snapshot cache database path")
	pf.StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")

	rootCmd.Flags().StringVar(&speechCommand, "speech-command", "", "external speech recognizer command")
	rootCmd.Flags().StringVar(&speechLang, "speech-lang", defaultSpeechLang, "speech language (tag or name)")
	rootCmd.Flags().StringVar(&keyboardLang, "keyboard", defaultKeyboard, "virtual keyboard language")

	rootCmd.AddCommand(newPredictCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newLangsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig merges defaults, the config file, TUIMETA_* variables and flags,
// in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyEnv(&fileCfg)

	applyStringConfig(cmd, "url", &serviceURL, fileCfg.Service.URL)
	if err := applyDurationConfig(cmd, "timeout", &serviceTimeout, fileCfg.Service.Timeout); err != nil {
		return model.Config{}, err
	}
	applyStringConfig(cmd, "speech-command", &speechCommand, fileCfg.Speech.Command)
	applyStringConfig(cmd, "speech-lang", &speechLang, fileCfg.Speech.Lang)
	applyStringConfig(cmd, "keyboard", &keyboardLang, fileCfg.Keyboard.Lang)
	applyStringConfig(cmd, "lang", &historyLang, fileCfg.History.Lang)
	applyStringConfig(cmd, "label", &historyLabel, fileCfg.History.Label)
	applyStringConfig(cmd, "log-dir", &logDir, fileCfg.Log.Dir)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)

	cfg := model.Config{
		ServiceURL:    strings.TrimSpace(serviceURL),
		Timeout:       serviceTimeout,
		SpeechCommand: strings.TrimSpace(speechCommand),
		LogDir:        logDir,
		LogLevel:      logLevel,
		CacheDBPath:   dbPath,
	}
	if err := validateConfig(&cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg *model.Config) error {
	u, err := url.Parse(cfg.ServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("--url must be an absolute http(s) URL, got %q", cfg.ServiceURL)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	speechLanguage, err := lang.Resolve(speechLang)
	if err != nil {
		return fmt.Errorf("--speech-lang: %w", err)
	}
	cfg.SpeechTag = speechLanguage.SpeechTag
	keyboardLanguage, err := lang.Resolve(keyboardLang)
	if err != nil {
		return fmt.Errorf("--keyboard: %w", err)
	}
	cfg.KeyboardLang = keyboardLanguage.Name
	filter, err := parseFilter(historyLang, historyLabel)
	if err != nil {
		return err
	}
	cfg.HistoryFilter = filter
	return nil
}

func parseFilter(language, label string) (model.FilterCriteria, error) {
	var filter model.FilterCriteria
	if language = strings.TrimSpace(language); language != "" && language != "all" {
		l, err := lang.Resolve(language)
		if err != nil {
			return model.FilterCriteria{}, fmt.Errorf("--lang: %w", err)
		}
		filter.Language = l.Name
	}
	if label = strings.TrimSpace(label); label != "" && label != "all" {
		parsed, err := model.ParseLabel(label)
		if err != nil {
			return model.FilterCriteria{}, fmt.Errorf("--label: %w", err)
		}
		filter.Label = parsed
	}
	return filter, nil
}

// env bundles the collaborators shared by the subcommands.
type env struct {
	cfg    model.Config
	client *api.Client
	cache  *store.Store
}

func setup(cmd *cobra.Command) (*env, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Init(cfg.LogDir, cfg.LogLevel); err != nil {
		logErrf("logging disabled: %v\n", err)
	}
	client, err := api.New(cfg.ServiceURL, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	e := &env{cfg: cfg, client: client}
	st, err := store.Open(cfg.CacheDBPath)
	if err != nil {
		logging.Warnf("snapshot cache unavailable: %v", err)
	} else {
		e.cache = st
	}
	cleanup := func() {
		if e.cache == nil {
			return
		}
		if cerr := e.cache.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}
	logging.Info("started " + cmd.CommandPath() + " against " + client.BaseURL())
	return e, cleanup, nil
}

func (e *env) historyStore() *history.Store {
	if e.cache == nil {
		return history.NewStore(e.client, nil)
	}
	return history.NewStore(e.client, e.cache)
}

func runAnalyzerCmd(cmd *cobra.Command, _ []string) error {
	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := speech.NewExecRecognizer(e.cfg.SpeechCommand)
	if err != nil {
		return fmt.Errorf("invalid speech command: %w", err)
	}
	if rec == nil {
		logging.Info("no speech command configured; microphone input disabled")
	}
	speechLanguage, _ := lang.BySpeechTag(e.cfg.SpeechTag)
	keyboardLanguage, _ := lang.ByName(e.cfg.KeyboardLang)

	hist := historyui.NewModel(e.historyStore(), e.cfg.HistoryFilter, false)
	analyzer := tui.NewModel(func(onFocus func()) *app.Controller {
		return app.New(e.client, speech.NewSession(rec, speechLanguage.SpeechTag), keyboardLanguage, onFocus)
	}, hist, speechLanguage)
	program := tea.NewProgram(analyzer, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report.Write(cmd.OutOrStdout(), report.LanguagesTable())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts, err := shellwords.Parse(editor)
	if err != nil {
		return fmt.Errorf("invalid $EDITOR: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuimeta configuration
# Uncomment a value to enable it. TUIMETA_* variables override the file; CLI flags override both.

[service]
# url = %q      # Classification service base URL
# timeout = %q               # Per-request timeout

[speech]
# command = "whisper-listen"      # Recognizer command; receives --lang <tag>, prints the transcript
# lang = %q                  # Speech language tag or name

[keyboard]
# lang = %q                 # Virtual keyboard language

[history]
# lang = "all"                    # Initial language filter
# label = "all"                   # Initial type filter (metaphor, normal)

[log]
# dir = %q
# level = %q
`,
		defaultServiceURL,
		defaultTimeout.String(),
		defaultSpeechLang,
		defaultKeyboard,
		config.DefaultLogDir(),
		defaultLogLevel,
	)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("invalid %s in config: %w", name, err)
	}
	*target = parsed
	return nil
}

// userError replaces err with its user-facing message and logs the detail.
func userError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.KindOf(err); !ok {
		return err
	}
	logging.Errorf("%v", err)
	return errors.New(apperrors.PublicMessage(err))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
