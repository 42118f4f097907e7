// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/blockroom/models"
)

type dialect struct {
	driver     string
	schema     string
	positional bool // $1, $2 placeholders instead of ?
	maxOpen    int
}

var postgresDialect = dialect{
	driver: "postgres",
	schema: `
        CREATE TABLE IF NOT EXISTS rooms (
            id BIGSERIAL PRIMARY KEY,
            room_id VARCHAR(255) UNIQUE NOT NULL,
            mode VARCHAR(32) NOT NULL,
            created_at BIGINT NOT NULL,
            last_seen_at BIGINT NOT NULL DEFAULT 0
        )`,
	positional: true,
	maxOpen:    25,
}

// SQLDirectory stores the directory through database/sql. It serves both the
// lib/pq and the pure-Go SQLite drivers.
type SQLDirectory struct {
	db *sql.DB
	d  dialect
}

// NewPostgreSQL opens a PostgreSQL directory using lib/pq.
func NewPostgreSQL(dsn string) (*SQLDirectory, error) {
	return openSQL(postgresDialect, dsn)
}

func openSQL(d dialect, dsn string) (*SQLDirectory, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}

	db.SetMaxOpenConns(d.maxOpen)
	db.SetMaxIdleConns(d.maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rooms table: %w", err)
	}
	return &SQLDirectory{db: db, d: d}, nil
}

// rebind rewrites ? placeholders for drivers that want positional ones.
func (s *SQLDirectory) rebind(query string) string {
	if !s.d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLDirectory) CreateRoom(ctx context.Context, roomID, mode string) (models.RoomInfo, error) {
	now := time.Now().UnixMilli()
	result, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO rooms (room_id, mode, created_at, last_seen_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (room_id) DO NOTHING`),
		roomID, mode, now, now)
	if err != nil {
		return models.RoomInfo{}, fmt.Errorf("create room %s: %w", roomID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return models.RoomInfo{}, err
	}
	if affected == 0 {
		return models.RoomInfo{}, fmt.Errorf("create room %s: %w", roomID, ErrDuplicateRoom)
	}
	return models.GormRoom{RoomID: roomID, Mode: mode, CreatedAt: now, LastSeenAt: now}.Info(), nil
}

func (s *SQLDirectory) FindRoom(ctx context.Context, roomID string) (models.RoomInfo, error) {
	var row models.GormRoom
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT room_id, mode, created_at, last_seen_at FROM rooms WHERE room_id = ?`), roomID).
		Scan(&row.RoomID, &row.Mode, &row.CreatedAt, &row.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomInfo{}, ErrRecordNotFound
	}
	if err != nil {
		return models.RoomInfo{}, err
	}
	return row.Info(), nil
}

func (s *SQLDirectory) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE rooms SET last_seen_at = ? WHERE room_id = ?`), at.UnixMilli(), roomID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SQLDirectory) ListRooms(ctx context.Context, limit int) ([]models.RoomInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT room_id, mode, created_at, last_seen_at FROM rooms
         ORDER BY last_seen_at DESC, room_id LIMIT ?`), listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RoomInfo
	for rows.Next() {
		var row models.GormRoom
		if err := rows.Scan(&row.RoomID, &row.Mode, &row.CreatedAt, &row.LastSeenAt); err != nil {
			return nil, err
		}
		list = append(list, row.Info())
	}
	return list, rows.Err()
}

func (s *SQLDirectory) Close() error {
	return s.db.Close()
}
