package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vacanbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store, creating the database file and
// schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; WAL keeps concurrent readers fast.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) EnsureUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, created_at) VALUES(?,?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) Preferences(ctx context.Context, userID int64) (Preferences, error) {
	var p Preferences

	var err error
	if p.Locations, err = s.stringColumn(ctx, `SELECT location FROM locations WHERE user_id = ?`, userID); err != nil {
		return p, err
	}
	if p.Specialities, err = s.stringColumn(ctx, `SELECT speciality FROM specialities WHERE user_id = ?`, userID); err != nil {
		return p, err
	}
	if p.Grades, err = s.stringColumn(ctx, `SELECT grade FROM grades WHERE user_id = ?`, userID); err != nil {
		return p, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT salary FROM salaries WHERE user_id = ?`, userID).Scan(&p.SalaryFloor)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	return p, err
}

func (s *sqliteStore) stringColumn(ctx context.Context, query string, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// replaceCategory implements the wholesale delete-then-reinsert write
// the settings wizard performs for each preference category.
func (s *sqliteStore) replaceCategory(ctx context.Context, table, column string, userID int64, values []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, table), userID); err != nil {
		return err
	}
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(user_id, %s) VALUES(?,?)`, table, column), userID, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) ReplaceLocations(ctx context.Context, userID int64, values []string) error {
	return s.replaceCategory(ctx, "locations", "location", userID, values)
}

func (s *sqliteStore) ReplaceSpecialities(ctx context.Context, userID int64, values []string) error {
	return s.replaceCategory(ctx, "specialities", "speciality", userID, values)
}

func (s *sqliteStore) ReplaceGrades(ctx context.Context, userID int64, values []string) error {
	return s.replaceCategory(ctx, "grades", "grade", userID, values)
}

func (s *sqliteStore) SetSalary(ctx context.Context, userID int64, salary int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO salaries(user_id, salary, updated_at) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET salary=excluded.salary, updated_at=excluded.updated_at`,
		userID, salary, time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) WasSent(ctx context.Context, userID int64, vacancyID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_vacancies WHERE user_id = ? AND vacancy_id = ?`,
		userID, vacancyID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) RecordSent(ctx context.Context, userID int64, vacancyID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_vacancies(user_id, vacancy_id, sent_at) VALUES(?,?,?)
		 ON CONFLICT(user_id, vacancy_id) DO NOTHING`,
		userID, vacancyID, at.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) LastSentAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT sent_at FROM sent_vacancies WHERE user_id = ? ORDER BY sent_at DESC LIMIT 1`,
		userID,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	st := Stats{
		Locations:    map[string]int{},
		Specialities: map[string]int{},
		Grades:       map[string]int{},
		SentByHour:   map[int]int{},
	}
	if now.IsZero() {
		now = time.Now()
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UnixMilli()

	counts := []struct {
		query string
		args  []any
		dst   *int
	}{
		{`SELECT COUNT(*) FROM users`, nil, &st.TotalUsers},
		{`SELECT COUNT(*) FROM users WHERE created_at >= ?`, []any{dayStart}, &st.NewUsersToday},
		{`SELECT COUNT(*) FROM sent_vacancies`, nil, &st.SentTotal},
		{`SELECT COUNT(*) FROM sent_vacancies WHERE sent_at >= ?`, []any{dayStart}, &st.SentToday},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return st, err
		}
	}

	groups := []struct {
		query string
		dst   map[string]int
	}{
		{`SELECT location, COUNT(*) FROM locations GROUP BY location`, st.Locations},
		{`SELECT speciality, COUNT(*) FROM specialities GROUP BY speciality`, st.Specialities},
		{`SELECT grade, COUNT(*) FROM grades GROUP BY grade`, st.Grades},
	}
	for _, g := range groups {
		rows, err := s.db.QueryContext(ctx, g.query)
		if err != nil {
			return st, err
		}
		for rows.Next() {
			var k string
			var n int
			if err := rows.Scan(&k, &n); err != nil {
				rows.Close()
				return st, err
			}
			g.dst[k] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return st, err
		}
		rows.Close()
	}

	hours, err := s.db.QueryContext(ctx,
		`SELECT CAST(strftime('%H', sent_at/1000, 'unixepoch', 'localtime') AS INTEGER) AS hour, COUNT(*)
		 FROM sent_vacancies GROUP BY hour`)
	if err != nil {
		return st, err
	}
	defer hours.Close()
	for hours.Next() {
		var h, n int
		if err := hours.Scan(&h, &n); err != nil {
			return st, err
		}
		st.SentByHour[h] = n
	}
	return st, hours.Err()
}
