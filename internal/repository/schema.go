package repository

import "fmt"

// Dialect selects the SQL flavour spoken by SQLStore. The values match the
// database/sql driver names.
type Dialect string

const (
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) timestampType() string {
	if d == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

func (d Dialect) schema() []string {
	ts := d.timestampType()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS identities (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL,
			email_key   TEXT NOT NULL,
			credential  TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL DEFAULT '',
			picture     TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			website     TEXT NOT NULL DEFAULT '',
			gender      TEXT NOT NULL DEFAULT '',
			created_at  %[1]s NOT NULL,
			updated_at  %[1]s NOT NULL,
			CONSTRAINT %[2]s UNIQUE (email_key)
		)`, ts, emailConstraint),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS identity_providers (
			identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
			kind        TEXT NOT NULL,
			subject_id  TEXT NOT NULL,
			PRIMARY KEY (identity_id, kind),
			CONSTRAINT %s UNIQUE (kind, subject_id)
		)`, providerConstraint),
		`CREATE TABLE IF NOT EXISTS identity_tokens (
			identity_id   TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			kind          TEXT NOT NULL,
			access_token  TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_secret  TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (identity_id, position)
		)`,
	}
}
