// Package dsn validates and redacts connection strings for the supported drivers.
package dsn

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
)

// Supported driver names, as registered with database/sql.
const (
	MySQL    = "mysql"
	Postgres = "pgx"
	SQLite   = "sqlite3"
)

const redacted = "xxxxx"

var (
	// ErrEmpty is returned for an empty connection string.
	ErrEmpty = errors.New("connection string is empty")

	// ErrUnknownDriver is returned for a driver name that is not supported.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrMalformed wraps the driver's parse error.
	ErrMalformed = errors.New("malformed connection string")
)

var aliases = map[string]string{
	MySQL:      MySQL,
	Postgres:   Postgres,
	"postgres": Postgres,
	"pg":       Postgres,
	SQLite:     SQLite,
	"sqlite":   SQLite,
}

var pgKeywordPassword = regexp.MustCompile(`(password\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// Drivers returns the canonical driver names.
func Drivers() []string {
	return []string{MySQL, Postgres, SQLite}
}

// Normalize maps a driver name or alias to the name registered with database/sql.
func Normalize(driver string) (string, error) {
	name, ok := aliases[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return "", fmt.Errorf("%w %q, expected one of %s", ErrUnknownDriver, driver, strings.Join(Drivers(), ", "))
	}

	return name, nil
}

// Validate checks that connectionString is well formed for driver.
func Validate(driver, connectionString string) error {
	name, err := Normalize(driver)
	if err != nil {
		return err
	}

	if strings.TrimSpace(connectionString) == "" {
		return ErrEmpty
	}

	switch name {
	case MySQL:
		if _, err := mysql.ParseDSN(connectionString); err != nil {
			return errors.Join(ErrMalformed, err)
		}
	case Postgres:
		if _, err := pgx.ParseConfig(connectionString); err != nil {
			return errors.Join(ErrMalformed, err)
		}
	case SQLite:
		if strings.HasPrefix(connectionString, "file:") {
			if _, err := url.Parse(connectionString); err != nil {
				return errors.Join(ErrMalformed, err)
			}
		}
	}

	return nil
}

// Redact returns connectionString with any password replaced, safe to log.
// Strings that cannot be parsed are fully redacted.
func Redact(driver, connectionString string) string {
	name, err := Normalize(driver)
	if err != nil {
		return redacted
	}

	switch name {
	case MySQL:
		cfg, err := mysql.ParseDSN(connectionString)
		if err != nil {
			return redacted
		}
		if cfg.Passwd != "" {
			cfg.Passwd = redacted
		}
		return cfg.FormatDSN()
	case Postgres:
		if strings.Contains(connectionString, "://") {
			u, err := url.Parse(connectionString)
			if err != nil {
				return redacted
			}
			q := u.Query()
			for _, key := range []string{"password", "sslpassword"} {
				if q.Has(key) {
					q.Set(key, redacted)
					u.RawQuery = q.Encode()
				}
			}
			return u.Redacted()
		}
		return pgKeywordPassword.ReplaceAllString(connectionString, "${1}"+redacted)
	case SQLite:
		return connectionString
	}

	return redacted
}

// IsMemory reports whether a sqlite connection string refers to an in-memory database.
func IsMemory(driver, connectionString string) bool {
	name, err := Normalize(driver)
	if err != nil || name != SQLite {
		return false
	}

	return connectionString == ":memory:" || slices.ContainsFunc([]string{"mode=memory", "file::memory:"}, func(s string) bool {
		return strings.Contains(connectionString, s)
	})
}
