package postgres

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/peterbourgon/ff/v3"
)

// database/sql driver names this package can connect with
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

type Config struct {
	// database/sql driver, DriverPQ or DriverPGX
	Driver string
	// connection string; when set, the fields below are ignored
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	DatabaseName string
	SSLMode      string
}

// DSN returns the connection string for the configured driver
func (c *Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
	}
	if c.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.User))
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	if c.DatabaseName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", c.DatabaseName))
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))

	return strings.Join(parts, " ")
}

// password value in a libpq keyword/value DSN, quoted or bare
var dsnPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S*)`)

// Redacted is the DSN with any password masked, for logging
func (c *Config) Redacted() string {
	if c.URL != "" {
		if !strings.HasPrefix(c.URL, "postgres://") && !strings.HasPrefix(c.URL, "postgresql://") {
			return dsnPassword.ReplaceAllString(c.URL, "${1}xxxxx")
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			return "<unparseable url>"
		}
		return u.Redacted()
	}
	redacted := *c
	if redacted.Password != "" {
		redacted.Password = "xxxxx"
	}
	return redacted.DSN()
}

// connect to Postgres and return a database handle representing a pool of connections.
// The transactions table is created when missing.
func Connect(ctx context.Context, config *Config) (*sqlx.DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPQ
	}

	db, err := sqlx.ConnectContext(ctx, driver, config.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	err = setup(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Parse the flags in the flag set from args.
// Environment variables prefixed with POSTGRES fill in flags not given in args.
//
// Example .env file
//
//	POSTGRES_HOST=localhost
//	POSTGRES_PORT=5432
//	POSTGRES_USER=alice
//	POSTGRES_PASSWORD=secret
//	POSTGRES_DB_NAME=expense_tracker
func Parse(args []string) (*Config, error) {
	var err error

	postgresFlags := flag.NewFlagSet("postgres", flag.ContinueOnError)
	var (
		host     = postgresFlags.String("host", "localhost", "host to connect to")
		port     = postgresFlags.Int("port", 5432, "port to bind to")
		user     = postgresFlags.String("user", "", "user to sign in as")
		password = postgresFlags.String("password", "", "password of the user")
		dbName   = postgresFlags.String("db_name", "", "name of the database")
		sslMode  = postgresFlags.String("sslmode", "disable", "libpq sslmode")
	)

	err = ff.Parse(postgresFlags, args,
		ff.WithIgnoreUndefined(true),
		ff.WithEnvVarPrefix("POSTGRES"),
	)
	if err != nil {
		return nil, err
	}

	return &Config{
		Driver:       DriverPQ,
		Host:         *host,
		Port:         *port,
		User:         *user,
		Password:     *password,
		DatabaseName: *dbName,
		SSLMode:      *sslMode,
	}, nil
}

// configures the database settings
func setup(ctx context.Context, db *sqlx.DB) error {
	// install extension for creating UUIDs
	_, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"")
	if err != nil {
		return fmt.Errorf("adding UUID extension: %w", err)
	}

	err = createTransactionsTable(ctx, db)
	if err != nil {
		return fmt.Errorf("creating db tables: %w", err)
	}

	return nil
}
