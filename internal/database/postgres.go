package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// buildPostgresDSN renders a keyword/value connection string and checks it
// with the pgx parser before gorm dials.
func buildPostgresDSN(cfg Config) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.User == "" || cfg.Name == "" {
			return "", errors.New("postgres configuration requires user and database name")
		}

		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}

		params := []string{
			fmt.Sprintf("host=%s", host),
			fmt.Sprintf("port=%d", port),
			fmt.Sprintf("user=%s", quotePostgresValue(cfg.User)),
			fmt.Sprintf("dbname=%s", quotePostgresValue(cfg.Name)),
		}
		if cfg.Password != "" {
			params = append(params, fmt.Sprintf("password=%s", quotePostgresValue(cfg.Password)))
		}

		options := map[string]string{
			"sslmode":  "disable",
			"timezone": "UTC",
		}
		for key, value := range cfg.Options {
			options[key] = value
		}
		keys := make([]string, 0, len(options))
		for key := range options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			params = append(params, fmt.Sprintf("%s=%s", key, quotePostgresValue(options[key])))
		}
		dsn = strings.Join(params, " ")
	}

	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres dsn: %w", err)
	}
	return dsn, nil
}

// quotePostgresValue quotes values containing spaces, quotes or backslashes.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(value) + "'"
}
