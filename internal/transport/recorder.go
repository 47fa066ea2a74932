package transport

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/msgs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Recorder stores published messages in SQLite. Each Recorder is one
// session; rows carry the session id so several runs can share a file.
type Recorder struct {
	db        *sql.DB
	path      string
	sessionID string
	insert    *sql.Stmt
	logf      func(format string, v ...interface{})
}

// RecordedMessage is one stored row.
type RecordedMessage struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Envelope
}

// OpenRecorder opens (or creates) the database at path, migrates it to the
// latest schema and starts a new session.
func OpenRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Recorder{
		db:        db,
		path:      path,
		sessionID: uuid.NewString(),
		logf:      monitoring.Prefixed("Recorder"),
	}
	if _, err := db.Exec(`INSERT INTO sessions (session_id) VALUES (?)`, r.sessionID); err != nil {
		db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}
	r.insert, err = db.Prepare(`INSERT INTO messages (session_id, topic, type, stamp_ns, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	r.logf("recording session %s to %s", r.sessionID, path)
	return r, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// SessionID returns the id rows from this recorder are stored under.
func (r *Recorder) SessionID() string { return r.sessionID }

// Publish stores msg.
func (r *Recorder) Publish(topic string, msg msgs.Message) error {
	env, err := NewEnvelope(topic, msg)
	if err != nil {
		return err
	}
	return r.Record(env)
}

// Record stores an already serialised message.
func (r *Recorder) Record(env Envelope) error {
	if _, err := r.insert.Exec(r.sessionID, env.Topic, env.Type, env.StampNs, string(env.Payload)); err != nil {
		return fmt.Errorf("record %s: %w", env.Topic, err)
	}
	return nil
}

// Messages returns up to limit of the most recent rows for topic across all
// sessions, newest first. An empty topic matches every topic.
func (r *Recorder) Messages(topic string, limit int) ([]RecordedMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT message_id, session_id, topic, type, stamp_ns, payload
		FROM messages
		WHERE ? = '' OR topic = ?
		ORDER BY message_id DESC
		LIMIT ?`, topic, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []RecordedMessage
	for rows.Next() {
		var m RecordedMessage
		var payload string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Topic, &m.Type, &m.StampNs, &payload); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Payload = []byte(payload)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of rows stored in this session.
func (r *Recorder) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, r.sessionID).Scan(&n)
	return n, err
}

// AttachAdminRoutes mounts a tailsql console over the recorder database on
// the tsweb debug page served at /debug/.
func (r *Recorder) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+r.path, r.db, &tailsql.DBOptions{
		Label: "Telemetry recording",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}

// Close finalises the session and closes the database.
func (r *Recorder) Close() error {
	if r.insert != nil {
		r.insert.Close()
	}
	return r.db.Close()
}
