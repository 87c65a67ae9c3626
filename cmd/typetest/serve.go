package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/config"
	"github.com/verte-zerg/typetest/internal/generator"
	"github.com/verte-zerg/typetest/internal/logging"
	"github.com/verte-zerg/typetest/internal/server"
	"github.com/verte-zerg/typetest/internal/sink"
	"github.com/verte-zerg/typetest/internal/store"
	"github.com/verte-zerg/typetest/internal/wordlist"
)

const defaultAddr = ":8080"

type serveSettings struct {
	addr    string
	db      string
	apiKey  string
	envFile string
}

func newServeCmd() *cobra.Command {
	var s serveSettings
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the results API and WebSocket test server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.resolve(cmd); err != nil {
				return err
			}
			return runServe(cmd.Context(), s)
		},
	}
	cmd.Flags().StringVar(&s.addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&s.db, "db", "", "database path (default $XDG_DATA_HOME/typetest/server.db)")
	cmd.Flags().StringVar(&s.apiKey, "api-key", "", "key required to post results")
	cmd.Flags().StringVar(&s.envFile, "env-file", ".env", "dotenv file to load before reading TYPETEST_* variables")
	return cmd
}

// resolve layers values as flag, then environment, then config file.
func (s *serveSettings) resolve(cmd *cobra.Command) error {
	if s.envFile != "" {
		if err := godotenv.Load(s.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", s.envFile, err)
		}
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyConfig(cmd, "addr", &s.addr, fileCfg.Server.Addr)
	applyConfig(cmd, "db", &s.db, fileCfg.Server.DB)
	applyConfig(cmd, "api-key", &s.apiKey, fileCfg.Server.APIKey)
	applyEnv(cmd, "addr", &s.addr, "TYPETEST_ADDR")
	applyEnv(cmd, "db", &s.db, "TYPETEST_DB")
	applyEnv(cmd, "api-key", &s.apiKey, "TYPETEST_API_KEY")
	if s.db == "" {
		s.db = config.DefaultServerDBPath()
	}
	if s.addr == "" {
		return fmt.Errorf("--addr must not be empty")
	}
	return nil
}

func applyEnv(cmd *cobra.Command, name string, target *string, key string) {
	if cmd.Flags().Changed(name) {
		return
	}
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func runServe(ctx context.Context, s serveSettings) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log := logging.NewConsole(level)
	defer func() {
		if serr := log.Sync(); serr != nil {
			// Best-effort flush.
			_ = serr
		}
	}()
	gin.SetMode(gin.ReleaseMode)

	st, err := store.Open(s.db, store.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn("failed to close db", zap.Error(cerr))
		}
	}()

	if s.apiKey == "" {
		logErrln("warning: no API key configured; POST /api/results is open")
	}

	src := generator.Source{
		Provider: wordlist.NewDirProvider(config.DefaultWordListDir()),
		Gen:      generator.New(),
	}
	srv, err := server.New(server.Options{
		Store:      st,
		Log:        log,
		APIKey:     s.apiKey,
		Words:      src.Words,
		Dispatcher: sink.NewDispatcher(log, 10*time.Second, sink.StoreSink{Store: st}),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("starting server", zap.String("db", s.db))
	return srv.Run(ctx, s.addr)
}
