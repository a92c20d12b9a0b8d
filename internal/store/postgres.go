package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
	"github.com/zhouzirui/echomind/backend/internal/store/migrations"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps documents in JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore applies migrations and opens a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if err := RunMigrations(databaseURL, migrations.FS, logger); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPool parses databaseURL and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RunMigrations brings the schema up to the latest embedded version.
func RunMigrations(databaseURL string, migrationsFS fs.FS, logger *zap.Logger) error {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// --- Conversations ---

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return scanPgConversation(row)
}

func (s *PostgresStore) FindConversation(ctx context.Context, userID, sessionID string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID)
	return scanPgConversation(row)
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Conversation, 0)
	for rows.Next() {
		conv, err := scanPgConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertConversation(ctx context.Context, conv *chat.Conversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	messages, err := json.Marshal(nonNilMessages(conv.Messages))
	if err != nil {
		return "", fmt.Errorf("encode messages: %w", err)
	}
	convCtx, err := json.Marshal(conv.Context)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conv.ID, conv.UserID, conv.SessionID, messages, convCtx, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return conv.ID, nil
}

func (s *PostgresStore) PatchConversation(ctx context.Context, id string, patch chat.ConversationPatch) error {
	messages, err := json.Marshal(nonNilMessages(patch.Messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	convCtx, err := json.Marshal(patch.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET messages = $2, context = $3, updated_at = $4 WHERE id = $1`,
		id, messages, convCtx, patch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgConversation(row pgx.Row) (*chat.Conversation, error) {
	var (
		conv              chat.Conversation
		messages, convCtx []byte
	)
	err := row.Scan(&conv.ID, &conv.UserID, &conv.SessionID, &messages, &convCtx, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if err := json.Unmarshal(messages, &conv.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(convCtx, &conv.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return &conv, nil
}

// --- Intent rules ---

func (s *PostgresStore) ListIntents(ctx context.Context) ([]intent.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, document FROM intent_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	out := make([]intent.Rule, 0)
	for rows.Next() {
		rule, err := scanPgRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindIntent(ctx context.Context, category string) (intent.Rule, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, document FROM intent_rules WHERE category = $1`, category)
	return scanPgRule(row)
}

func (s *PostgresStore) InsertIntent(ctx context.Context, rule intent.Rule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	doc, err := json.Marshal(rule)
	if err != nil {
		return "", fmt.Errorf("encode intent: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO intent_rules (id, category, document) VALUES ($1, $2, $3)`,
		rule.ID, rule.Category, doc)
	if err != nil {
		if isPgUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert intent: %w", err)
	}
	return rule.ID, nil
}

func (s *PostgresStore) DeleteIntent(ctx context.Context, category string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM intent_rules WHERE category = $1`, category)
	if err != nil {
		return fmt.Errorf("delete intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgRule(row pgx.Row) (intent.Rule, error) {
	var (
		id  string
		doc []byte
	)
	if err := row.Scan(&id, &doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return intent.Rule{}, ErrNotFound
		}
		return intent.Rule{}, fmt.Errorf("scan intent: %w", err)
	}
	var rule intent.Rule
	if err := json.Unmarshal(doc, &rule); err != nil {
		return intent.Rule{}, fmt.Errorf("decode intent: %w", err)
	}
	rule.ID = id
	return rule, nil
}

// --- Emotion models ---

func (s *PostgresStore) FindEmotionModel(ctx context.Context, name string) (emotion.Model, error) {
	var (
		id  string
		doc []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, document FROM emotion_models WHERE name = $1`, name).Scan(&id, &doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return emotion.Model{}, ErrNotFound
		}
		return emotion.Model{}, fmt.Errorf("find emotion model: %w", err)
	}
	var model emotion.Model
	if err := json.Unmarshal(doc, &model); err != nil {
		return emotion.Model{}, fmt.Errorf("decode emotion model: %w", err)
	}
	model.ID = id
	return model, nil
}

func (s *PostgresStore) InsertEmotionModel(ctx context.Context, model emotion.Model) (string, error) {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	doc, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("encode emotion model: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO emotion_models (id, name, document) VALUES ($1, $2, $3)`,
		model.ID, model.Name, doc)
	if err != nil {
		if isPgUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert emotion model: %w", err)
	}
	return model.ID, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
