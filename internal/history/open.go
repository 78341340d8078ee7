package history

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	"quizagent/internal/history/db"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Config selects where run history is kept. A remote libsql Url takes priority
// over a local File, with neither set history is disabled.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c Config) Enabled() bool {
	return c.File != "" || c.Url != ""
}

// OpenDB opens the configured database and applies the schema.
func (c Config) OpenDB() (*sql.DB, error) {
	var database *sql.DB
	var err error
	switch {
	case c.Url != "":
		database, err = c.openRemote()
	case c.File != "":
		database, err = c.openFile()
	default:
		return nil, fmt.Errorf("neither a history file nor url was specified")
	}
	if err != nil {
		return nil, err
	}

	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}

func (c Config) openRemote() (*sql.DB, error) {
	dsn, err := url.Parse(c.Url)
	if err != nil {
		return nil, fmt.Errorf("parse history url: %w", err)
	}
	if c.AuthToken != "" {
		values := dsn.Query()
		values.Set("authToken", c.AuthToken)
		dsn.RawQuery = values.Encode()
	}
	return sql.Open("libsql", dsn.String())
}

func (c Config) openFile() (*sql.DB, error) {
	_, statErr := os.Stat(c.File)
	if os.IsNotExist(statErr) {
		f, err := os.Create(c.File)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	database, err := sql.Open("sqlite", c.File)
	if err != nil {
		return nil, err
	}
	// sqlite only tolerates a single writer
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
