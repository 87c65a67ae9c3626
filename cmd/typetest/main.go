// Package main provides the CLI entrypoint for typetest.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/config"
	"github.com/verte-zerg/typetest/internal/generator"
	"github.com/verte-zerg/typetest/internal/logging"
	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/sink"
	"github.com/verte-zerg/typetest/internal/store"
	"github.com/verte-zerg/typetest/internal/tui"
	"github.com/verte-zerg/typetest/internal/wordlist"
)

const (
	defaultMode          = "time"
	defaultTime          = 30
	defaultWords         = 25
	defaultLang          = "english"
	defaultDifficulty    = "normal"
	defaultWeakTop       = 8
	defaultWeakFactor    = 2.0
	defaultWeakWindow    = 20
	defaultRemoteTimeout = 5
)

var (
	practiceMode        string
	practiceTime        int
	practiceWords       int
	practiceLang        string
	practicePunctuation bool
	practiceNumbers     bool
	practiceFreedom     bool
	practiceHideExtra   bool
	practiceDifficulty  string
	practiceUsername    string
	practiceCaps        float64
	practiceFocusWeak   bool
	practiceWeakTop     int
	practiceWeakFactor  float64
	practiceWeakWindow  int

	logLevel string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typetest",
		Short:         "Terminal typing test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&practiceMode, "mode", defaultMode, "test mode: time or words")
	flags.IntVar(&practiceTime, "time", defaultTime, "time limit in seconds (time mode)")
	flags.IntVar(&practiceWords, "words", defaultWords, "word target (words mode)")
	flags.StringVar(&practiceLang, "lang", defaultLang, "word list language")
	flags.BoolVar(&practicePunctuation, "punctuation", false, "add punctuation to words")
	flags.BoolVar(&practiceNumbers, "numbers", false, "mix numbers into words")
	flags.BoolVar(&practiceFreedom, "freedom", false, "allow backspace into finished words")
	flags.BoolVar(&practiceHideExtra, "hide-extra", false, "do not record letters typed past the word end")
	flags.StringVar(&practiceDifficulty, "difficulty", defaultDifficulty, "normal, expert or master")
	flags.StringVar(&practiceUsername, "username", "", "name recorded with results (default Guest)")
	flags.Float64Var(&practiceCaps, "caps", 0, "probability of a capitalized first letter (0-1)")
	flags.BoolVar(&practiceFocusWeak, "focus-weak", false, "bias practice toward weak characters")
	flags.IntVar(&practiceWeakTop, "weak-top", defaultWeakTop, "number of weak characters to focus on")
	flags.Float64Var(&practiceWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak characters")
	flags.IntVar(&practiceWeakWindow, "weak-window", defaultWeakWindow, "number of recent results to compute weak chars")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLangsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newChartCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWordlistCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	p := fileCfg.Practice
	applyConfig(cmd, "mode", &practiceMode, p.Mode)
	applyConfig(cmd, "time", &practiceTime, p.Time)
	applyConfig(cmd, "words", &practiceWords, p.Words)
	applyConfig(cmd, "lang", &practiceLang, p.Lang)
	applyConfig(cmd, "punctuation", &practicePunctuation, p.Punctuation)
	applyConfig(cmd, "numbers", &practiceNumbers, p.Numbers)
	applyConfig(cmd, "freedom", &practiceFreedom, p.Freedom)
	applyConfig(cmd, "hide-extra", &practiceHideExtra, p.HideExtra)
	applyConfig(cmd, "difficulty", &practiceDifficulty, p.Difficulty)
	applyConfig(cmd, "username", &practiceUsername, p.Username)
	applyConfig(cmd, "caps", &practiceCaps, p.Caps)
	applyConfig(cmd, "focus-weak", &practiceFocusWeak, p.FocusWeak)
	applyConfig(cmd, "weak-top", &practiceWeakTop, p.WeakTop)
	applyConfig(cmd, "weak-factor", &practiceWeakFactor, p.WeakFactor)
	applyConfig(cmd, "weak-window", &practiceWeakWindow, p.WeakWindow)

	cfg, err := practiceConfig()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log, err := logging.NewFile(logging.FileOptions{Path: config.DefaultLogPath(), Level: level})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() {
		if serr := log.Sync(); serr != nil {
			// Best-effort flush.
			_ = serr
		}
	}()

	provider := wordlist.NewDirProvider(config.DefaultWordListDir())
	if _, err := provider.Words(cfg.Test.Language); err != nil {
		return wordListLoadError(cfg.Test.Language, provider.Path(cfg.Test.Language), err)
	}

	st, err := store.Open(config.DefaultDBPath(), store.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	sinks := []sink.Sink{sink.StoreSink{Store: st}}
	if remote := remoteSink(fileCfg.Remote); remote != nil {
		sinks = append(sinks, remote)
	}
	dispatcher := sink.NewDispatcher(log, 15*time.Second, sinks...)
	defer dispatcher.Wait()

	ui, err := tui.NewModel(tui.Options{
		Practice: cfg,
		Source:   &generator.Source{Provider: provider, Gen: generator.New(), CapsPct: cfg.CapsPct},
		Store:    st,
		Saver:    dispatcher,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer ui.Close()

	log.Info("practice started",
		zap.String("mode", cfg.Test.ModeKey()),
		zap.String("lang", cfg.Test.Language))
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func practiceConfig() (model.PracticeConfig, error) {
	mode, err := model.ParseMode(practiceMode)
	if err != nil {
		return model.PracticeConfig{}, fmt.Errorf("--mode: %w", err)
	}
	test := model.TestConfig{
		Mode:             mode,
		Language:         practiceLang,
		Punctuation:      practicePunctuation,
		Numbers:          practiceNumbers,
		FreedomMode:      practiceFreedom,
		HideExtraLetters: practiceHideExtra,
		Difficulty:       model.Difficulty(practiceDifficulty),
	}
	if mode == model.ModeTime {
		test.TimeLimit = practiceTime
	} else {
		test.WordTarget = practiceWords
	}
	if err := test.Validate(); err != nil {
		return model.PracticeConfig{}, err
	}
	cfg := model.PracticeConfig{
		Test:       test,
		Username:   strings.TrimSpace(practiceUsername),
		CapsPct:    practiceCaps,
		FocusWeak:  practiceFocusWeak,
		WeakTop:    practiceWeakTop,
		WeakFactor: practiceWeakFactor,
		WeakWindow: practiceWeakWindow,
	}
	if err := validatePractice(cfg); err != nil {
		return model.PracticeConfig{}, err
	}
	return cfg, nil
}

func validatePractice(cfg model.PracticeConfig) error {
	if cfg.CapsPct < 0 || cfg.CapsPct > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	return nil
}

func remoteSink(cfg config.RemoteConfig) *sink.RemoteSink {
	if cfg.URL == nil || strings.TrimSpace(*cfg.URL) == "" {
		return nil
	}
	apiKey := ""
	if cfg.APIKey != nil {
		apiKey = *cfg.APIKey
	}
	timeout := defaultRemoteTimeout
	if cfg.TimeoutSec != nil && *cfg.TimeoutSec > 0 {
		timeout = *cfg.TimeoutSec
	}
	return sink.NewRemoteSink(strings.TrimSpace(*cfg.URL), apiKey, time.Duration(timeout)*time.Second)
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
	path := config.DefaultConfigPath()
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
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List built-in and downloaded word list languages",
		Args:  cobra.NoArgs,
		RunE:  runLangsCmd,
	}
}

func runLangsCmd(cmd *cobra.Command, _ []string) error {
	langs, err := wordlist.NewDirProvider(config.DefaultWordListDir()).Languages()
	if err != nil {
		return err
	}
	if len(langs) == 0 {
		logErrf("No wordlists found. Run typetest wordlist or add <lang>.txt files to %s\n", config.DefaultWordListDir())
		return fmt.Errorf("no wordlists found")
	}
	for _, lang := range langs {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), lang); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// applyConfig copies a file value into target unless the flag was set.
func applyConfig[T any](cmd *cobra.Command, name string, target, value *T) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typetest configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# mode = %q             # time or words
# time = %d               # Seconds per test in time mode
# words = %d              # Words per test in words mode
# lang = %q          # Word list language
# punctuation = false     # Add punctuation
# numbers = false         # Mix in numbers
# freedom = false         # Allow backspace into finished words
# hide-extra = false      # Do not record letters past the word end
# difficulty = %q     # normal, expert or master
# username = "Guest"      # Name recorded with results
# caps = 0.0              # Probability of a capitalized first letter (0-1)
# focus-weak = false      # Bias practice toward weak characters
# weak-top = %d           # Number of weak characters to focus on
# weak-factor = %.1f      # Weight factor for weak characters
# weak-window = %d        # Number of recent results to compute weak chars

[remote]
# url = "http://localhost:8080"   # Also send results to a typetest server
# api-key = ""
# timeout-sec = %d

[server]
# addr = ":8080"
# db = "/path/to/server.db"
# api-key = ""
`,
		defaultMode,
		defaultTime,
		defaultWords,
		defaultLang,
		defaultDifficulty,
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		defaultRemoteTimeout,
	)
}

func wordListLoadError(lang, path string, err error) error {
	lines := []string{fmt.Sprintf("failed to load word list: %v", err)}
	if path != "" {
		lines = append(lines, fmt.Sprintf("expected word list at: %s", path))
	}
	if errors.Is(err, wordlist.ErrUnknownLanguage) {
		lines = append(lines,
			fmt.Sprintf("language %q not found", lang),
			"Run: typetest langs",
			"Or download one: typetest wordlist --lang <code>",
		)
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
