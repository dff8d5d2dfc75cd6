package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultDBPath = "~/.aws-account-assessment/assessment.db"

// SQLite is the local backend of the component table.
type SQLite struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewSQLite opens (and migrates) the sqlite database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	resolved, err := resolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLite{db: db, dbPath: resolved, now: time.Now}, nil
}

// SetClock overrides the time used to hide and purge expired rows.
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the resolved database file.
func (s *SQLite) Path() string {
	return s.dbPath
}

func resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		p = defaultDBPath
	}
	if strings.HasPrefix(p, "~/") || p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home dir: %w", err)
		}
		if p == "~" {
			p = home
		} else {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Clean(p), nil
}

const upsertItem = `
	INSERT INTO items (pk, sk, job_id, expires_at, body)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(pk, sk) DO UPDATE SET
		job_id=excluded.job_id,
		expires_at=excluded.expires_at,
		body=excluded.body,
		updated_at=CURRENT_TIMESTAMP
`

func (s *SQLite) PutItem(ctx context.Context, item Item) error {
	return s.PutItems(ctx, []Item{item})
}

func (s *SQLite) PutItems(ctx context.Context, items []Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range items {
		key, kerr := keyOf(item)
		if kerr != nil {
			err = kerr
			return err
		}
		body, merr := json.Marshal(item)
		if merr != nil {
			err = fmt.Errorf("failed to encode %s/%s: %w", key.PartitionKey, key.SortKey, merr)
			return err
		}
		if _, err = tx.ExecContext(ctx, upsertItem, key.PartitionKey, key.SortKey, jobIDOf(item), expiresAtOf(item), string(body)); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func (s *SQLite) GetItem(ctx context.Context, key Key) (Item, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM items
		WHERE pk=? AND sk=? AND (expires_at = 0 OR expires_at > ?)
	`, key.PartitionKey, key.SortKey, s.now().Unix()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeBody(body)
}

func (s *SQLite) DeleteItem(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE pk=? AND sk=?`, key.PartitionKey, key.SortKey)
	return err
}

func (s *SQLite) Query(ctx context.Context, q Query) (Page, error) {
	if q.PartitionKey == "" && q.JobID == "" {
		return Page{}, errors.New("query needs a partition key or a job id")
	}

	where := []string{"(expires_at = 0 OR expires_at > ?)"}
	args := []any{s.now().Unix()}
	if q.JobID != "" {
		where = append(where, "job_id = ?")
		args = append(args, q.JobID)
	}
	if q.PartitionKey != "" {
		where = append(where, "pk = ?")
		args = append(args, q.PartitionKey)
	}
	if q.SortKeyPrefix != "" {
		where = append(where, "substr(sk, 1, ?) = ?")
		args = append(args, len(q.SortKeyPrefix), q.SortKeyPrefix)
	}
	if q.StartKey != nil {
		where = append(where, "(pk, sk) > (?, ?)")
		args = append(args, q.StartKey.PartitionKey, q.StartKey.SortKey)
	}
	for _, f := range q.Contains {
		where = append(where, "instr(COALESCE(CAST(json_extract(body, '$.' || ?) AS TEXT), ''), ?) > 0")
		args = append(args, f.Attribute, f.Value)
	}

	stmt := "SELECT pk, sk, body FROM items WHERE " + strings.Join(where, " AND ") + " ORDER BY pk, sk"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit+1)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	page := Page{Items: []Item{}}
	var keys []Key
	for rows.Next() {
		var key Key
		var body string
		if err := rows.Scan(&key.PartitionKey, &key.SortKey, &body); err != nil {
			return Page{}, err
		}
		item, err := decodeBody(body)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, item)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	if q.Limit > 0 && len(page.Items) > q.Limit {
		page.Items = page.Items[:q.Limit]
		last := keys[q.Limit-1]
		if q.JobID != "" {
			last.JobID = q.JobID
		}
		page.LastKey = &last
	}
	return page, nil
}

// PurgeExpired deletes every row whose ExpiresAt has passed.
func (s *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE expires_at > 0 AND expires_at <= ?
	`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func decodeBody(body string) (Item, error) {
	var item Item
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return nil, fmt.Errorf("failed to decode stored item: %w", err)
	}
	return item, nil
}
