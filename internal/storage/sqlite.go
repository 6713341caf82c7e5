package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite. Skills are stored as a JSON array.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mdw_chunks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (source, title, chunk_index)
	);

	CREATE TABLE IF NOT EXISTS helpers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		nationality TEXT NOT NULL,
		experience INTEGER NOT NULL DEFAULT 0,
		skills TEXT NOT NULL DEFAULT '[]',
		availability INTEGER NOT NULL DEFAULT 1,
		expected_salary INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_helpers_nationality ON helpers(nationality);
	CREATE INDEX IF NOT EXISTS idx_helpers_updated_at ON helpers(updated_at);
	`
	_, err := db.Exec(schema)
	return err
}

// DeleteChunks removes all chunks for (source, title).
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, source, title string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mdw_chunks WHERE source = ? AND title = ?`, source, title)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertChunks inserts multiple chunks in a transaction.
func (s *SQLiteStorage) InsertChunks(ctx context.Context, chunks []*models.TextChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mdw_chunks (id, source, title, chunk_index, text, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = uuid.New().String()
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.Source, chunk.Title, chunk.ChunkIndex,
			chunk.Text, utils.Float32sToBytes(chunk.Embedding), chunk.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

// ListChunks returns all chunks for (source, title) ordered by chunk_index.
func (s *SQLiteStorage) ListChunks(ctx context.Context, source, title string) ([]*models.TextChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, title, chunk_index, text, embedding, created_at
		 FROM mdw_chunks WHERE source = ? AND title = ? ORDER BY chunk_index`,
		source, title,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.TextChunk
	for rows.Next() {
		var chunk models.TextChunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Title, &chunk.ChunkIndex, &chunk.Text, &blob, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.Embedding = utils.BytesToFloat32s(blob)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of chunks stored for (source, title).
func (s *SQLiteStorage) CountChunks(ctx context.Context, source, title string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mdw_chunks WHERE source = ? AND title = ?`, source, title).Scan(&count)
	return count, err
}

const helperColumns = `id, name, age, nationality, experience, skills, availability, expected_salary, created_at, updated_at`

// FindHelpers returns up to limit helpers matching the filter. Nationality and skills match
// case-insensitively as substrings; every listed skill must match.
func (s *SQLiteStorage) FindHelpers(ctx context.Context, filter *models.HelperSearchFilter, limit int) ([]*models.HelperProfile, error) {
	var where []string
	var args []interface{}
	if filter != nil {
		if filter.Nationality != nil {
			where = append(where, `LOWER(nationality) LIKE ? ESCAPE '\'`)
			args = append(args, likeContains(*filter.Nationality))
		}
		if filter.MinAge != nil {
			where = append(where, `age >= ?`)
			args = append(args, *filter.MinAge)
		}
		if filter.MaxAge != nil {
			where = append(where, `age <= ?`)
			args = append(args, *filter.MaxAge)
		}
		if filter.MinExperience != nil {
			where = append(where, `experience >= ?`)
			args = append(args, *filter.MinExperience)
		}
		for _, skill := range filter.Skills {
			where = append(where, `EXISTS (SELECT 1 FROM json_each(helpers.skills) WHERE LOWER(json_each.value) LIKE ? ESCAPE '\')`)
			args = append(args, likeContains(skill))
		}
	}
	query := `SELECT ` + helperColumns + ` FROM helpers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY rowid LIMIT ?`
	args = append(args, limit)
	return s.queryHelpers(ctx, query, args...)
}

var sqliteSortColumns = map[string]string{
	"name":           "name",
	"age":            "age",
	"nationality":    "nationality",
	"experience":     "experience",
	"expectedSalary": "expected_salary",
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
}

// ListHelpers returns one page of helpers matching q and the total match count.
func (s *SQLiteStorage) ListHelpers(ctx context.Context, q *models.HelperQuery) ([]*models.HelperProfile, int64, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}
	var where []string
	var args []interface{}
	if q.Name != "" {
		where = append(where, `LOWER(name) LIKE ? ESCAPE '\'`)
		args = append(args, likeContains(q.Name))
	}
	if q.Nationality != "" {
		where = append(where, `nationality = ? COLLATE NOCASE`)
		args = append(args, strings.TrimSpace(q.Nationality))
	}
	if len(q.Skills) > 0 {
		placeholders := make([]string, len(q.Skills))
		for i, skill := range q.Skills {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(skill))
		}
		where = append(where, `EXISTS (SELECT 1 FROM json_each(helpers.skills) WHERE LOWER(json_each.value) IN (`+
			strings.Join(placeholders, ", ")+`))`)
	}
	if q.Available != nil {
		where = append(where, `availability = ?`)
		args = append(args, *q.Available)
	}
	if q.MinExp != nil {
		where = append(where, `experience >= ?`)
		args = append(args, *q.MinExp)
	}
	if q.MaxSalary != nil {
		where = append(where, `expected_salary <= ?`)
		args = append(args, *q.MaxSalary)
	}
	clause := ""
	if len(where) > 0 {
		clause = ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM helpers`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	query := `SELECT ` + helperColumns + ` FROM helpers` + clause +
		fmt.Sprintf(` ORDER BY %s %s, rowid LIMIT ? OFFSET ?`, sqliteSortColumns[q.SortField], dir)
	pageArgs := append(append([]interface{}{}, args...), q.Limit, q.Offset())
	helpers, err := s.queryHelpers(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return helpers, total, nil
}

// GetHelper returns a helper by ID.
func (s *SQLiteStorage) GetHelper(ctx context.Context, id string) (*models.HelperProfile, error) {
	helpers, err := s.queryHelpers(ctx, `SELECT `+helperColumns+` FROM helpers WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(helpers) == 0 {
		return nil, fmt.Errorf("helper %s: %w", id, ErrNotFound)
	}
	return helpers[0], nil
}

// ReplaceHelpers deletes all helpers and inserts the given ones in a single transaction.
func (s *SQLiteStorage) ReplaceHelpers(ctx context.Context, helpers []*models.HelperProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM helpers`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO helpers (`+helperColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, h := range helpers {
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		h.CreatedAt, h.UpdatedAt = now, now
		skills := h.Skills
		if skills == nil {
			skills = []string{}
		}
		skillsJSON, err := json.Marshal(skills)
		if err != nil {
			return fmt.Errorf("failed to marshal skills: %w", err)
		}
		var salary interface{}
		if h.ExpectedSalary != nil {
			salary = *h.ExpectedSalary
		}
		if _, err := stmt.ExecContext(ctx, h.ID, h.Name, h.Age, h.Nationality, h.Experience,
			string(skillsJSON), h.Availability, salary, h.CreatedAt, h.UpdatedAt); err != nil {
			return fmt.Errorf("insert helper %s: %w", h.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) queryHelpers(ctx context.Context, query string, args ...interface{}) ([]*models.HelperProfile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var helpers []*models.HelperProfile
	for rows.Next() {
		var h models.HelperProfile
		var skillsJSON string
		var salary sql.NullInt64
		if err := rows.Scan(&h.ID, &h.Name, &h.Age, &h.Nationality, &h.Experience, &skillsJSON,
			&h.Availability, &salary, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(skillsJSON), &h.Skills); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
		}
		if salary.Valid {
			v := int(salary.Int64)
			h.ExpectedSalary = &v
		}
		helpers = append(helpers, &h)
	}
	return helpers, rows.Err()
}

// likeContains builds a lower-cased LIKE pattern matching s anywhere, escaping wildcards.
func likeContains(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
