package db

import (
	"context"
	"database/sql"
	"fmt"
)

func migrate(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE name='schema_migrations';`)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if !rows.Next() {
		err := initSchemaMigration(db)
		if err != nil {
			return err
		}
	}
	err = doMigrate(db, migrations)
	if err != nil {
		return err
	}
	return nil
}

func initSchemaMigration(sql *sql.DB) error {
	_, err := sql.Exec("create table schema_migrations(" +
		"id varchar primary key, count int)")
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %v", err)
	}
	_, err = sql.Exec(`insert into schema_migrations values('current_state',0);`)
	if err != nil {
		return fmt.Errorf("init schema_migrations: %v", err)
	}
	return nil
}

var migrations = []string{
	`create table if not exists traces(id integer primary key);`,
	`alter table traces add column url text;`,
	`alter table traces add column method text;`,
	`alter table traces add column status_code integer;`,
	`alter table traces add column response_size integer;`,
	`alter table traces add column ip_address text;`,
	`alter table traces add column tls_version text;`,
	`alter table traces add column dns_ms real;`,
	`alter table traces add column tcp_connect_ms real;`,
	`alter table traces add column tls_handshake_ms real;`,
	`alter table traces add column server_processing_ms real;`,
	`alter table traces add column content_transfer_ms real;`,
	`alter table traces add column total_ms real;`,
	`alter table traces add column error text;`,
	`alter table traces add column headers_sent text;`,
	`alter table traces add column headers_received text;`,
	`alter table traces add column label text;`,
	`alter table traces add column created_at integer;`,
	`create index if not exists idx_traces_url on traces(url);`,
	`create index if not exists idx_traces_created_at on traces(created_at);`,
	`create index if not exists idx_traces_label on traces(label);`,
	`create table if not exists presets(id integer primary key);`,
	`alter table presets add column name text;`,
	`alter table presets add column url text;`,
	`alter table presets add column method text;`,
	`alter table presets add column headers text;`,
	`alter table presets add column body text;`,
	`alter table presets add column created_at integer;`,
	`create unique index if not exists idx_presets_name on presets(name);`,
}

func doMigrate(db *sql.DB, migrations []string) error {
	currentState, err := currentState(db)
	if err != nil {
		return err
	}
	if len(migrations) == currentState {
		return nil
	}
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for i := currentState; i < len(migrations); i++ {
		_, err := tx.Exec(migrations[i])
		if err != nil {
			return fmt.Errorf("migration(%d): %v", i, err)
		}
	}
	err = updateCurrentState(tx, len(migrations))
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit transaction: %v", err)
	}
	return nil
}

func updateCurrentState(tx *sql.Tx, newState int) error {
	_, err := tx.Exec(`update schema_migrations set count=? where id='current_state';`, newState)
	if err != nil {
		return fmt.Errorf("update current state: %v", err)
	}
	return nil
}

func currentState(db *sql.DB) (int, error) {
	rows, err := db.Query(`select count from schema_migrations where id='current_state';`)
	if err != nil {
		return 0, fmt.Errorf("read current state: %v", err)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read current state rows: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, fmt.Errorf("no current_state in schema_migrations: possible" +
			" database corruption")
	}
	var currentState int
	err = rows.Scan(&currentState)
	if err != nil {
		return 0, fmt.Errorf("scan current state query: %v", err)
	}
	return currentState, nil
}
