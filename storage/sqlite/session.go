package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	_ "modernc.org/sqlite" // SQLite driver
)

const turnsTable = "turns"

//go:embed schema.sql
var schema string

var turnColumns = []string{"session_id", "seq", "role", "content", "tool_invocations", "citations", "ts"}

// SessionStore persists conversation turns in SQLite.
type SessionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.SessionStore = (*SessionStore)(nil)

// Open opens (creating if needed) the database file at path. ":memory:"
// opens a private in-memory database.
func Open(path string) (*SessionStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes appends.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SessionStore{
		db:     db,
		logger: slog.Default().With("component", "sqlite-sessions"),
	}, nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// AppendTurn stores a copy of turn with the next sequence number of its session.
func (s *SessionStore) AppendTurn(ctx context.Context, turn *core.ConversationTurn) (*core.ConversationTurn, error) {
	if turn == nil {
		return nil, core.ValidateTurn(nil)
	}
	stored := *turn
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}
	if err := core.ValidateTurn(&stored); err != nil {
		return nil, err
	}

	tools, err := storage.MarshalToolInvocations(stored.ToolInvocations)
	if err != nil {
		return nil, err
	}
	citations, err := storage.MarshalCitations(stored.Citations)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var last uint64
	row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM turns WHERE session_id = ?", stored.SessionID)
	if err := row.Scan(&last); err != nil {
		return nil, fmt.Errorf("reading last sequence: %w", err)
	}
	stored.Seq = last + 1

	query, args, err := builder.BuildInsert(turnsTable, []map[string]interface{}{{
		"session_id":       stored.SessionID,
		"seq":              stored.Seq,
		"role":             string(stored.Role),
		"content":          stored.Content,
		"tool_invocations": tools,
		"citations":        citations,
		"ts":               stored.Timestamp.UnixNano(),
	}})
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Debug("appended turn", "session", stored.SessionID, "seq", stored.Seq, "role", stored.Role)
	return &stored, nil
}

// History returns every turn of the session in append order.
func (s *SessionStore) History(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error) {
	if sessionID == "" {
		return nil, core.ErrEmptySessionID
	}

	query, args, err := builder.BuildSelect(turnsTable, map[string]interface{}{
		"session_id": sessionID,
		"_orderby":   "seq asc",
	}, turnColumns)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	turns := []*core.ConversationTurn{}
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func scanTurn(rows *sql.Rows) (*core.ConversationTurn, error) {
	var (
		turn      core.ConversationTurn
		role      string
		tools     []byte
		citations []byte
		ts        int64
	)
	if err := rows.Scan(&turn.SessionID, &turn.Seq, &role, &turn.Content, &tools, &citations, &ts); err != nil {
		return nil, err
	}
	turn.Role = core.Role(role)
	turn.Timestamp = time.Unix(0, ts).UTC()

	var err error
	if turn.ToolInvocations, err = storage.UnmarshalToolInvocations(tools); err != nil {
		return nil, errors.Join(fmt.Errorf("turn %s/%d", turn.SessionID, turn.Seq), err)
	}
	if turn.Citations, err = storage.UnmarshalCitations(citations); err != nil {
		return nil, errors.Join(fmt.Errorf("turn %s/%d", turn.SessionID, turn.Seq), err)
	}
	return &turn, nil
}
