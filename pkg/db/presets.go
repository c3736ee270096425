package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Preset is a named, reusable trace target.
type Preset struct {
	Name      string
	URL       string
	Method    string
	Headers   map[string]string
	Body      string
	CreatedAt int64
}

var ErrPresetNotFound = errors.New("preset not found")

// SavePreset inserts or replaces a preset by name.
func (s *Store) SavePreset(ctx context.Context, p Preset) error {
	headers := p.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	js, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshal preset headers: %v", err)
	}
	method := p.Method
	if method == "" {
		method = "GET"
	}
	_, err = s.db.ExecContext(ctx, `insert or replace into presets(
name, url, method, headers, body, created_at) values(?,?,?,?,?,?)`,
		p.Name, p.URL, method, string(js), p.Body, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save preset: %v", err)
	}
	return nil
}

func (s *Store) GetPreset(ctx context.Context, name string) (Preset, error) {
	row := s.db.QueryRowContext(ctx, `select name, url, method, headers,
body, created_at from presets where name = ?`, name)
	return scanPreset(row)
}

func scanPreset(row rowScanner) (Preset, error) {
	var p Preset
	var headers string
	err := row.Scan(&p.Name, &p.URL, &p.Method, &headers, &p.Body,
		&p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, ErrPresetNotFound
	}
	if err != nil {
		return Preset{}, fmt.Errorf("scan preset row: %v", err)
	}
	if err := json.Unmarshal([]byte(headers), &p.Headers); err != nil {
		return Preset{}, fmt.Errorf("parse preset headers: %v", err)
	}
	return p, nil
}

func (s *Store) ListPresets(ctx context.Context) ([]Preset, error) {
	rows, err := s.db.QueryContext(ctx, `select name, url, method,
headers, body, created_at from presets order by name`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %v", err)
	}
	defer rows.Close()

	var res []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list presets rows: %v", err)
	}
	return res, nil
}

// DeletePreset removes a preset by name and reports whether it existed.
func (s *Store) DeletePreset(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from presets where name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete preset: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count deleted presets: %v", err)
	}
	return n > 0, nil
}
