
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Reasonable defaults
	sqldb.SetMaxOpenConns(1) // SQLite best practice for embedded use
	sqldb.SetConnMaxLifetime(0)

	db := &DB{sql: sqldb}
	if err := db.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			verified INTEGER NOT NULL DEFAULT 0,
			banned INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			last_active INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS admins (
			user_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'admin',
			added_by INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			added_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS force_join_channels (
			channel_id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			username TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			added_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS broadcasts (
			broadcast_id TEXT PRIMARY KEY,
			message_text TEXT NOT NULL,
			sent_by INTEGER NOT NULL,
			total_users INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			sent_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_force_join_active ON force_join_channels(active, added_at);`,
	}
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SeedFromConfig registers the configured admin ids on first boot only.
// The first id becomes the owner.
func (d *DB) SeedFromConfig(ctx context.Context, initialAdmins []int64) error {
	count, err := d.AdminCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 || len(initialAdmins) == 0 {
		return nil
	}
	for i, id := range initialAdmins {
		role := "admin"
		if i == 0 {
			role = "owner"
		}
		if err := d.AddAdmin(ctx, id, "", role, 0); err != nil {
			return err
		}
	}
	return nil
}

// ---- users ----

func (d *DB) UpsertUser(ctx context.Context, userID int64, username, firstName string) error {
	now := time.Now().Unix()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO users(user_id,username,first_name,created_at,last_active)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET username=excluded.username, first_name=excluded.first_name, last_active=excluded.last_active`,
		userID, username, firstName, now, now)
	return err
}

func (d *DB) IsUserVerified(ctx context.Context, userID int64) (bool, error) {
	var v int
	err := d.sql.QueryRowContext(ctx, `SELECT verified FROM users WHERE user_id=?`, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// MarkUserVerified is an unconditional idempotent write; setting verified on
// an already verified user is a no-op.
func (d *DB) MarkUserVerified(ctx context.Context, userID int64) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE users SET verified=1 WHERE user_id=?`, userID)
	return err
}

func (d *DB) SetUserBanned(ctx context.Context, userID int64, banned bool) error {
	val := 0
	if banned {
		val = 1
	}
	_, err := d.sql.ExecContext(ctx, `UPDATE users SET banned=? WHERE user_id=?`, val, userID)
	return err
}

func (d *DB) IsUserBanned(ctx context.Context, userID int64) (bool, error) {
	var v int
	err := d.sql.QueryRowContext(ctx, `SELECT banned FROM users WHERE user_id=?`, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

func (d *DB) CountUsers(ctx context.Context) (int, error) {
	var c int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

// ListUserIDs returns non-banned user ids in signup order, for broadcast fan-out.
func (d *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT user_id FROM users WHERE banned=0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- admins ----

func (d *DB) AdminCount(ctx context.Context) (int, error) {
	var c int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM admins WHERE active=1`).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (d *DB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var active int
	err := d.sql.QueryRowContext(ctx, `SELECT active FROM admins WHERE user_id=?`, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return active == 1, nil
}

// AddAdmin re-activates a previously removed admin instead of failing.
func (d *DB) AddAdmin(ctx context.Context, userID int64, name, role string, addedBy int64) error {
	if role == "" {
		role = "admin"
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO admins(user_id,name,role,added_by,active,added_at) VALUES(?,?,?,?,1,?)
		 ON CONFLICT(user_id) DO UPDATE SET active=1, name=excluded.name`,
		userID, name, role, addedBy, time.Now().Unix())
	return err
}

// RemoveAdmin revokes privileges but keeps the row for the audit trail.
func (d *DB) RemoveAdmin(ctx context.Context, userID int64) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE admins SET active=0 WHERE user_id=?`, userID)
	return err
}

type Admin struct {
	UserID  int64
	Name    string
	Role    string
	AddedAt int64
}

func (d *DB) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT user_id,name,role,added_at FROM admins WHERE active=1 ORDER BY added_at ASC, user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Admin
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.UserID, &a.Name, &a.Role, &a.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- force-join channels ----

type ForceJoinChannel struct {
	ChannelID int64
	Title     string
	Username  string
	Active    bool
	AddedAt   int64
}

// ActiveForceJoinChannels returns the currently enforced set in insertion
// order. Read fresh on every gate evaluation; never cached.
func (d *DB) ActiveForceJoinChannels(ctx context.Context) ([]ForceJoinChannel, error) {
	return d.queryChannels(ctx, `SELECT channel_id,title,username,active,added_at FROM force_join_channels WHERE active=1 ORDER BY added_at ASC, channel_id ASC`)
}

func (d *DB) ListForceJoinChannels(ctx context.Context) ([]ForceJoinChannel, error) {
	return d.queryChannels(ctx, `SELECT channel_id,title,username,active,added_at FROM force_join_channels ORDER BY added_at ASC, channel_id ASC`)
}

func (d *DB) queryChannels(ctx context.Context, query string) ([]ForceJoinChannel, error) {
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ForceJoinChannel
	for rows.Next() {
		var ch ForceJoinChannel
		var active int
		if err := rows.Scan(&ch.ChannelID, &ch.Title, &ch.Username, &active, &ch.AddedAt); err != nil {
			return nil, err
		}
		ch.Active = active == 1
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (d *DB) GetForceJoinChannel(ctx context.Context, channelID int64) (ForceJoinChannel, bool, error) {
	var ch ForceJoinChannel
	var active int
	err := d.sql.QueryRowContext(ctx, `SELECT channel_id,title,username,active,added_at FROM force_join_channels WHERE channel_id=?`, channelID).
		Scan(&ch.ChannelID, &ch.Title, &ch.Username, &active, &ch.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ForceJoinChannel{}, false, nil
	}
	if err != nil {
		return ForceJoinChannel{}, false, err
	}
	ch.Active = active == 1
	return ch, true, nil
}

// AddForceJoinChannel re-activates an existing row rather than rejecting the
// duplicate channel id.
func (d *DB) AddForceJoinChannel(ctx context.Context, channelID int64, title, username string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO force_join_channels(channel_id,title,username,active,added_at) VALUES(?,?,?,1,?)
		 ON CONFLICT(channel_id) DO UPDATE SET active=1, title=excluded.title, username=excluded.username`,
		channelID, title, username, time.Now().Unix())
	return err
}

func (d *DB) RemoveForceJoinChannel(ctx context.Context, channelID int64) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM force_join_channels WHERE channel_id=?`, channelID)
	return err
}

func (d *DB) SetForceJoinActive(ctx context.Context, channelID int64, active bool) error {
	val := 0
	if active {
		val = 1
	}
	_, err := d.sql.ExecContext(ctx, `UPDATE force_join_channels SET active=? WHERE channel_id=?`, val, channelID)
	return err
}

// ---- broadcasts ----

type Broadcast struct {
	ID           string
	MessageText  string
	SentBy       int64
	TotalUsers   int
	SuccessCount int
	FailedCount  int
	Status       string
	SentAt       int64
	CompletedAt  sql.NullInt64
}

func (d *DB) CreateBroadcast(ctx context.Context, text string, sentBy int64, totalUsers int) (string, error) {
	id := "bc_" + uuid.New().String()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO broadcasts(broadcast_id,message_text,sent_by,total_users,status,sent_at) VALUES(?,?,?,?, 'pending', ?)`,
		id, text, sentBy, totalUsers, time.Now().Unix())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *DB) FinishBroadcast(ctx context.Context, broadcastID string, success, failed int) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE broadcasts SET success_count=?, failed_count=?, status='completed', completed_at=? WHERE broadcast_id=?`,
		success, failed, time.Now().Unix(), broadcastID)
	return err
}

func (d *DB) ListBroadcasts(ctx context.Context, limit int) ([]Broadcast, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT broadcast_id,message_text,sent_by,total_users,success_count,failed_count,status,sent_at,completed_at
		 FROM broadcasts ORDER BY sent_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Broadcast
	for rows.Next() {
		var b Broadcast
		if err := rows.Scan(&b.ID, &b.MessageText, &b.SentBy, &b.TotalUsers, &b.SuccessCount, &b.FailedCount, &b.Status, &b.SentAt, &b.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
