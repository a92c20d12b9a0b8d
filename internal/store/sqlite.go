package store

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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// SQLiteStore keeps each record as a JSON document in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// One connection keeps read-modify-write patches serialised per process.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS conversations (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				session_id TEXT NOT NULL,
				messages   TEXT NOT NULL DEFAULT '[]',
				context    TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE(user_id, session_id)
			);
			CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

			CREATE TABLE IF NOT EXISTS intent_rules (
				position INTEGER PRIMARY KEY AUTOINCREMENT,
				id       TEXT NOT NULL UNIQUE,
				category TEXT NOT NULL UNIQUE,
				document TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS emotion_models (
				id       TEXT PRIMARY KEY,
				name     TEXT NOT NULL UNIQUE,
				document TEXT NOT NULL
			);
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return err
		}
	}
	return nil
}

// --- Conversations ---

const conversationColumns = `id, user_id, session_id, messages, context, created_at, updated_at`

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	return scanSQLiteConversation(row)
}

func (s *SQLiteStore) FindConversation(ctx context.Context, userID, sessionID string) (*chat.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? AND session_id = ?`,
		userID, sessionID)
	return scanSQLiteConversation(row)
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Conversation, 0)
	for rows.Next() {
		conv, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertConversation(ctx context.Context, conv *chat.Conversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	messages, err := json.Marshal(nonNilMessages(conv.Messages))
	if err != nil {
		return "", fmt.Errorf("sqlite: encode messages: %w", err)
	}
	convCtx, err := json.Marshal(conv.Context)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.SessionID, string(messages), string(convCtx),
		formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("sqlite: insert conversation: %w", err)
	}
	return conv.ID, nil
}

func (s *SQLiteStore) PatchConversation(ctx context.Context, id string, patch chat.ConversationPatch) error {
	messages, err := json.Marshal(nonNilMessages(patch.Messages))
	if err != nil {
		return fmt.Errorf("sqlite: encode messages: %w", err)
	}
	convCtx, err := json.Marshal(patch.Context)
	if err != nil {
		return fmt.Errorf("sqlite: encode context: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET messages = ?, context = ?, updated_at = ? WHERE id = ?`,
		string(messages), string(convCtx), formatTime(patch.UpdatedAt), id)
	if err != nil {
		return fmt.Errorf("sqlite: patch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConversation(row rowScanner) (*chat.Conversation, error) {
	var (
		conv                 chat.Conversation
		messages, convCtx    string
		createdAt, updatedAt string
	)
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.SessionID, &messages, &convCtx, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: scan conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
		return nil, fmt.Errorf("sqlite: decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(convCtx), &conv.Context); err != nil {
		return nil, fmt.Errorf("sqlite: decode context: %w", err)
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return &conv, nil
}

// --- Intent rules ---

func (s *SQLiteStore) ListIntents(ctx context.Context) ([]intent.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document FROM intent_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list intents: %w", err)
	}
	defer rows.Close()

	out := make([]intent.Rule, 0)
	for rows.Next() {
		rule, err := scanSQLiteRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindIntent(ctx context.Context, category string) (intent.Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, document FROM intent_rules WHERE category = ?`, category)
	return scanSQLiteRule(row)
}

func (s *SQLiteStore) InsertIntent(ctx context.Context, rule intent.Rule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	doc, err := json.Marshal(rule)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode intent: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO intent_rules (id, category, document) VALUES (?, ?, ?)`,
		rule.ID, rule.Category, string(doc))
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("sqlite: insert intent: %w", err)
	}
	return rule.ID, nil
}

func (s *SQLiteStore) DeleteIntent(ctx context.Context, category string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intent_rules WHERE category = ?`, category)
	if err != nil {
		return fmt.Errorf("sqlite: delete intent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSQLiteRule(row rowScanner) (intent.Rule, error) {
	var id, doc string
	if err := row.Scan(&id, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return intent.Rule{}, ErrNotFound
		}
		return intent.Rule{}, fmt.Errorf("sqlite: scan intent: %w", err)
	}
	var rule intent.Rule
	if err := json.Unmarshal([]byte(doc), &rule); err != nil {
		return intent.Rule{}, fmt.Errorf("sqlite: decode intent: %w", err)
	}
	rule.ID = id
	return rule, nil
}

// --- Emotion models ---

func (s *SQLiteStore) FindEmotionModel(ctx context.Context, name string) (emotion.Model, error) {
	var id, doc string
	err := s.db.QueryRowContext(ctx, `SELECT id, document FROM emotion_models WHERE name = ?`, name).Scan(&id, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emotion.Model{}, ErrNotFound
		}
		return emotion.Model{}, fmt.Errorf("sqlite: find emotion model: %w", err)
	}
	var model emotion.Model
	if err := json.Unmarshal([]byte(doc), &model); err != nil {
		return emotion.Model{}, fmt.Errorf("sqlite: decode emotion model: %w", err)
	}
	model.ID = id
	return model, nil
}

func (s *SQLiteStore) InsertEmotionModel(ctx context.Context, model emotion.Model) (string, error) {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	doc, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode emotion model: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO emotion_models (id, name, document) VALUES (?, ?, ?)`,
		model.ID, model.Name, string(doc))
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("sqlite: insert emotion model: %w", err)
	}
	return model.ID, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Helpers ---

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nonNilMessages(msgs []chat.Message) []chat.Message {
	if msgs == nil {
		return []chat.Message{}
	}
	return msgs
}

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts rows written with trimmed fractions.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
