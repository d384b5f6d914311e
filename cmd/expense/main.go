package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"expense/config"
	"expense/internal/agent"
	"expense/internal/logger"
	"expense/internal/web"
)

func main() {
	cmd, _, err := newCommand()
	if err != nil {
		log.Fatal().Err(err).Msg("setting up flags")
	}

	err = cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

type cli struct {
	v   *viper.Viper
	cfg agent.Config
}

func newCommand() (*cobra.Command, *cli, error) {
	c := &cli{v: viper.New()}

	cmd := &cobra.Command{
		Use:          "expense",
		Short:        "expense: an HTTP API for recording credit and debit transactions",
		PreRunE:      c.setupConfig,
		RunE:         c.run,
		SilenceUsage: true,
	}

	if err := c.setupFlags(cmd); err != nil {
		return nil, nil, err
	}
	return cmd, c, nil
}

// Reads the config fields from flags, the environment or a file and sets up the agent's config
func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error
	v := c.v

	if configFile := v.GetString("config-file"); configFile != "" {
		v.SetConfigFile(configFile)
		if err = v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// the env file has to be loaded before anything below reads the environment
	envFile := v.GetString("env-file")
	if envFile == "" {
		envFile = config.EnvFile()
	}
	if err = config.LoadEnv(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := agent.Config{}

	cfg.Logger, err = logger.New(os.Stderr, v.GetString("log-level"), v.GetString("env"))
	if err != nil {
		return err
	}

	cfg.BindAddr = fmt.Sprintf(":%d", v.GetInt("port"))
	cfg.DatabaseDriver = v.GetString("database-driver")
	cfg.DatabaseURL = v.GetString("database-url")
	cfg.KafkaBrokers = splitList(v.GetString("kafka-brokers"))
	cfg.KafkaTopic = v.GetString("kafka-topic")
	cfg.AllowedOrigins = splitList(v.GetString("allowed-origins"))
	cfg.ShutdownTimeout = v.GetDuration("shutdown-timeout")

	tlsConfig := web.TLSConfig{
		CertFile: v.GetString("tls-cert-file"),
		KeyFile:  v.GetString("tls-key-file"),
		CAFile:   v.GetString("tls-ca-file"),
	}
	if tlsConfig.Enabled() {
		if cfg.ServerTLSConfig, err = web.SetupTLSConfig(tlsConfig); err != nil {
			return err
		}
	}

	c.cfg = cfg
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	a, err := agent.New(c.cfg)
	if err != nil {
		c.cfg.Logger.Error().Err(err).Msg("starting")
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		c.cfg.Logger.Info().Stringer("signal", sig).Msg("shutting down")
	case <-a.Done():
	}

	return a.Shutdown()
}

func (c *cli) setupFlags(cmd *cobra.Command) error {
	fs := cmd.Flags()

	fs.String("config-file", "", "Path to config file")
	fs.String("env-file", "", "Path to a .env file (default $CONFIG_DIR/.env or ./.env)")
	fs.Int("port", 5000, "Port the HTTP server listens on")
	fs.String("database-driver", agent.DriverMongo, "Store to use: mongodb, postgres, pgx or memory")
	fs.String("database-url", "", "Connection string for the store")
	fs.String("log-level", "info", "Log level")
	fs.String("env", "development", "Environment; development logs to the console, anything else logs JSON")
	fs.String("kafka-brokers", "", "Comma separated Kafka brokers; transaction events are published when set")
	fs.String("kafka-topic", "transactions", "Kafka topic for transaction events")
	fs.String("allowed-origins", "*", "Comma separated CORS origins")
	fs.String("tls-cert-file", "", "Path to server tls cert")
	fs.String("tls-key-file", "", "Path to server tls key")
	fs.String("tls-ca-file", "", "Path to a certificate authority clients must be signed by")
	fs.Duration("shutdown-timeout", 10*time.Second, "How long in-flight requests get to finish on shutdown")

	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
	if err := c.v.BindEnv("env", "APP_ENV"); err != nil {
		return err
	}
	if err := c.v.BindEnv("database-url", "DATABASE_URL", "MONGODB_URI"); err != nil {
		return err
	}

	return c.v.BindPFlags(fs)
}

func splitList(s string) []string {
	var values []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
