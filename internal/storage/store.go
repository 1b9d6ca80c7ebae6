package storage

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/san-kum/brainjam/internal/jam"
)

// FileName is the database file created inside the data directory.
const FileName = "brainjam.db"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	engine       TEXT NOT NULL,
	shaper       TEXT NOT NULL,
	source       TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	tick_ns      INTEGER NOT NULL,
	sample_rate  INTEGER NOT NULL,
	started_at   TEXT NOT NULL,
	ended_at     TEXT,
	tick_count   INTEGER NOT NULL DEFAULT 0,
	final_label  TEXT,
	metrics_json TEXT,
	config_yaml  TEXT
);

CREATE TABLE IF NOT EXISTS ticks (
	session_id   TEXT NOT NULL,
	tick         INTEGER NOT NULL,
	time_ns      INTEGER NOT NULL,
	label        TEXT NOT NULL,
	control      BLOB NOT NULL,
	latent       BLOB NOT NULL,
	params       BLOB NOT NULL,
	response     BLOB NOT NULL,
	peak         REAL NOT NULL,
	latency_ns   INTEGER NOT NULL,
	overrun      INTEGER NOT NULL,
	PRIMARY KEY (session_id, tick),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

// Session is the metadata row of one recorded performance.
type Session struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Engine     jam.EngineKind     `json:"engine"`
	Shaper     string             `json:"shaper"`
	Source     string             `json:"source"`
	Seed       int64              `json:"seed"`
	Tick       time.Duration      `json:"tick"`
	SampleRate int                `json:"sample_rate"`
	StartedAt  time.Time          `json:"started_at"`
	EndedAt    time.Time          `json:"ended_at,omitzero"`
	Ticks      int                `json:"ticks"`
	FinalLabel jam.Behavior       `json:"final_label,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Config     string             `json:"-"`
}

// TickRow is one persisted frame.
type TickRow struct {
	Tick     int64                  `json:"tick"`
	Time     time.Duration          `json:"time"`
	Label    jam.Behavior           `json:"label"`
	Control  []float64              `json:"control"`
	Latent   []float64              `json:"latent"`
	Params   [jam.NumParams]float64 `json:"params"`
	Response jam.AgentResponse      `json:"response"`
	Peak     float64                `json:"peak"`
	Latency  time.Duration          `json:"latency"`
	Overrun  bool                   `json:"overrun"`
}

// Store keeps sessions in a SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open creates dir if needed and opens the session database inside it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; the recorder and readers share it
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Dir is the data directory the store lives in.
func (s *Store) Dir() string { return s.dir }

// Create inserts the session row, assigning a fresh id and start time when
// they are empty.
func (s *Store) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	if sess.Name == "" {
		sess.Name = string(sess.Engine) + "-" + sess.StartedAt.Format("20060102-150405")
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, name, engine, shaper, source, seed, tick_ns, sample_rate, started_at, config_yaml)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, string(sess.Engine), sess.Shaper, sess.Source, sess.Seed,
		int64(sess.Tick), sess.SampleRate, sess.StartedAt.Format(time.RFC3339Nano), nullIfEmpty(sess.Config),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Finish stores the end time, tick count, final label and metrics.
func (s *Store) Finish(id string, ticks int, final jam.Behavior, metrics map[string]float64) error {
	var metricsJSON any
	if len(metrics) > 0 {
		b, err := json.Marshal(metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		metricsJSON = string(b)
	}
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, tick_count = ?, final_label = ?, metrics_json = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), ticks, nullIfEmpty(string(final)), metricsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session %s: %w", id, jam.ErrSessionNotFound)
	}
	return nil
}

// InsertTicks writes rows in one transaction.
func (s *Store) InsertTicks(id string, rows []TickRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO ticks (session_id, tick, time_ns, label, control, latent, params, response, peak, latency_ns, overrun)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		resp := r.Response
		_, err := stmt.Exec(
			id, r.Tick, int64(r.Time), string(r.Label),
			encodeFloats(r.Control), encodeFloats(r.Latent), encodeFloats(r.Params[:]),
			encodeFloats([]float64{resp.DensityBias, resp.TensionBias, resp.TempoHint, resp.FillProbability}),
			r.Peak, int64(r.Latency), r.Overrun,
		)
		if err != nil {
			return fmt.Errorf("insert tick %d: %w", r.Tick, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const sessionColumns = `id, name, engine, shaper, source, seed, tick_ns, sample_rate, started_at,
	ended_at, tick_count, final_label, metrics_json, config_yaml`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess                          Session
		engine, started               string
		tickNs                        int64
		ended, final, metrics, config sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.Name, &engine, &sess.Shaper, &sess.Source, &sess.Seed,
		&tickNs, &sess.SampleRate, &started, &ended, &sess.Ticks, &final, &metrics, &config)
	if err != nil {
		return Session{}, err
	}
	sess.Engine = jam.EngineKind(engine)
	sess.Tick = time.Duration(tickNs)
	sess.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if ended.Valid {
		sess.EndedAt, _ = time.Parse(time.RFC3339Nano, ended.String)
	}
	sess.FinalLabel = jam.Behavior(final.String)
	sess.Config = config.String
	if metrics.Valid {
		if err := json.Unmarshal([]byte(metrics.String), &sess.Metrics); err != nil {
			return Session{}, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	return sess, nil
}

// List returns every session, newest first.
func (s *Store) List() ([]Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Load returns the session whose id, or a unique id prefix, matches ref.
func (s *Store) Load(ref string) (*Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("load session: %w", jam.ErrSessionNotFound)
	}
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, ref, ref,
	)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	var found []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.ID == ref {
			return &sess, nil
		}
		found = append(found, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("session %q: %w", ref, jam.ErrSessionNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("session prefix %q is ambiguous", ref)
	}
}

// LoadTicks returns the recorded frames of a session in tick order.
func (s *Store) LoadTicks(id string) ([]TickRow, error) {
	rows, err := s.db.Query(
		`SELECT tick, time_ns, label, control, latent, params, response, peak, latency_ns, overrun
		 FROM ticks WHERE session_id = ? ORDER BY tick`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load ticks: %w", err)
	}
	defer rows.Close()

	out := make([]TickRow, 0)
	for rows.Next() {
		var (
			r                                 TickRow
			label                             string
			timeNs, latNs                     int64
			control, latent, params, response []byte
		)
		if err := rows.Scan(&r.Tick, &timeNs, &label, &control, &latent, &params, &response,
			&r.Peak, &latNs, &r.Overrun); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		r.Time = time.Duration(timeNs)
		r.Latency = time.Duration(latNs)
		r.Label = jam.Behavior(label)
		r.Control = decodeFloats(control)
		r.Latent = decodeFloats(latent)
		copy(r.Params[:], decodeFloats(params))
		if resp := decodeFloats(response); len(resp) == 4 {
			r.Response = jam.AgentResponse{
				DensityBias: resp[0], TensionBias: resp[1], TempoHint: resp[2], FillProbability: resp[3],
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a session and its ticks.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ticks WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete ticks: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete session %s: %w", id, jam.ErrSessionNotFound)
	}
	return tx.Commit()
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool { return errors.Is(err, jam.ErrSessionNotFound) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeFloats(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeFloats(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
