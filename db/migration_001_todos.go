package db

import "database/sql"

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Create todos table",
		Up:          migration001Todos,
	})
}

func migration001Todos(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL CHECK (length(title) BETWEEN 1 AND 255),
			completed INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}
