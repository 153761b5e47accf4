package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"claudestation/internal/apperrors"
)

const currentSchemaVersion = 1

// SQLiteStore is the embedded relational Store described in §6: tables
// projects, documents, conversations, messages, each with the columns
// enumerated in §3, plus a single-row schema_meta table recording the
// schema version for forward-only migrations.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serialises the rolling-summary compare-and-swap across goroutines
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) the database at dsn and
// runs migrations. dsn is typically a file path under
// ${USER_DATA_DIR}/claude_station.db, or ":memory:" for tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite store: migrate")
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate detects the schema version and brings the database forward.
// It is idempotent: migrating an already-current database is a no-op
// (§8), and runs under a single transaction.
func (s *SQLiteStore) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	createStmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			default_model TEXT NOT NULL DEFAULT '',
			settings_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			extracted_text TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			file_type TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			model_override TEXT NOT NULL DEFAULT '',
			is_archived INTEGER NOT NULL DEFAULT 0,
			rolling_summary TEXT NOT NULL DEFAULT '',
			last_compressed_msg_id TEXT NOT NULL DEFAULT '',
			summary_token_count INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			thinking TEXT NOT NULL DEFAULT '',
			attachments_json TEXT NOT NULL DEFAULT '[]',
			model_used TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER,
			output_tokens INTEGER,
			cache_read_tokens INTEGER,
			cache_creation_tokens INTEGER,
			cost_usd REAL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range createStmts {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "create table: %s", stmt)
		}
	}

	indexStmts := []string{
		`CREATE INDEX IF NOT EXISTS documents_by_project ON documents(project_id, created_at_ms);`,
		`CREATE INDEX IF NOT EXISTS conversations_by_project ON conversations(project_id, updated_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS messages_by_conversation ON messages(conversation_id, created_at_ms, id);`,
	}
	for _, stmt := range indexStmts {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "create index: %s", stmt)
		}
	}

	var version int
	err = tx.QueryRow(`SELECT version FROM schema_meta WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: no legacy rows to backfill.
		if _, err := tx.Exec(`INSERT INTO schema_meta(id, version) VALUES (1, ?)`, currentSchemaVersion); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else if version < currentSchemaVersion {
		if err := s.backfillSummaryTokenCounts(tx); err != nil {
			return errors.Wrap(err, "backfill summary_token_count")
		}
		if _, err := tx.Exec(`UPDATE schema_meta SET version = ? WHERE id = 1`, currentSchemaVersion); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// backfillSummaryTokenCounts tokenises any pre-existing rolling_summary
// whose summary_token_count is zero, using a crude whitespace
// tokeniser — good enough for a one-time migration backfill; live
// estimates go through internal/tokenest.
func (s *SQLiteStore) backfillSummaryTokenCounts(tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT id, rolling_summary FROM conversations WHERE rolling_summary != '' AND summary_token_count = 0`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type pending struct {
		id      string
		summary string
	}
	var toUpdate []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.summary); err != nil {
			return err
		}
		toUpdate = append(toUpdate, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range toUpdate {
		count := len(strings.Fields(p.summary))
		if _, err := tx.Exec(`UPDATE conversations SET summary_token_count = ? WHERE id = ?`, count, p.id); err != nil {
			return err
		}
	}
	return nil
}

func nowMs() int64 { return time.Now().UnixMilli() }

func msToTime(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Settings == (ProjectSettings{}) {
		p.Settings = DefaultProjectSettings()
	}
	p.Settings = p.Settings.Clamp()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return Project{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects(id, name, system_prompt, default_model, settings_json, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.SystemPrompt, p.DefaultModel, string(settingsJSON), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Project{}, errors.Wrap(err, "insert project")
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, system_prompt, default_model, settings_json, created_at_ms, updated_at_ms
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func scanProject(row *sql.Row) (Project, error) {
	var p Project
	var settingsJSON string
	var createdMs, updatedMs int64
	err := row.Scan(&p.ID, &p.Name, &p.SystemPrompt, &p.DefaultModel, &settingsJSON, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, errors.Wrap(apperrors.ErrNotFound, "project")
	}
	if err != nil {
		return Project{}, err
	}
	if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
		return Project{}, errors.Wrap(err, "decode project settings")
	}
	p.CreatedAt, p.UpdatedAt = msToTime(createdMs), msToTime(updatedMs)
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, system_prompt, default_model, settings_json, created_at_ms, updated_at_ms
		FROM projects ORDER BY created_at_ms ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var settingsJSON string
		var createdMs, updatedMs int64
		if err := rows.Scan(&p.ID, &p.Name, &p.SystemPrompt, &p.DefaultModel, &settingsJSON, &createdMs, &updatedMs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
			return nil, errors.Wrap(err, "decode project settings")
		}
		p.CreatedAt, p.UpdatedAt = msToTime(createdMs), msToTime(updatedMs)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateProjectSettings(ctx context.Context, id string, settings ProjectSettings) error {
	settings = settings.Clamp()
	b, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET settings_json = ?, updated_at_ms = ? WHERE id = ?`,
		string(b), nowMs(), id)
	if err != nil {
		return errors.Wrap(err, "update project settings")
	}
	return requireRowAffected(res, apperrors.ErrNotFound)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	// Cascades to conversations and documents, and transitively to
	// messages, via ON DELETE CASCADE (§3.2).
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete project")
	}
	return requireRowAffected(res, apperrors.ErrNotFound)
}

// --- Documents ---

func (s *SQLiteStore) AddDocument(ctx context.Context, d Document) (Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents(id, project_id, filename, extracted_text, token_count, file_type, created_at_ms)
		VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.Filename, d.ExtractedText, d.TokenCount, d.FileType, d.CreatedAt.UnixMilli())
	if err != nil {
		return Document{}, errors.Wrap(err, "insert document")
	}
	return d, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, filename, extracted_text, token_count, file_type, created_at_ms
		FROM documents WHERE project_id = ? ORDER BY created_at_ms ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var createdMs int64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.ExtractedText, &d.TokenCount, &d.FileType, &createdMs); err != nil {
			return nil, err
		}
		d.CreatedAt = msToTime(createdMs)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete document")
	}
	return requireRowAffected(res, apperrors.ErrNotFound)
}

// --- Conversations ---

func (s *SQLiteStore) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations(id, project_id, title, model_override, is_archived, rolling_summary, last_compressed_msg_id, summary_token_count, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,0,'','',0,?,?)`,
		c.ID, c.ProjectID, c.Title, c.ModelOverride, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Conversation{}, errors.Wrap(err, "insert conversation")
	}
	return c, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, model_override, is_archived, rolling_summary, last_compressed_msg_id, summary_token_count, created_at_ms, updated_at_ms
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (Conversation, error) {
	var c Conversation
	var isArchived int
	var createdMs, updatedMs int64
	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.ModelOverride, &isArchived,
		&c.RollingSummary, &c.LastCompressedMsgID, &c.SummaryTokenCount, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, errors.Wrap(apperrors.ErrNotFound, "conversation")
	}
	if err != nil {
		return Conversation{}, err
	}
	c.IsArchived = isArchived != 0
	c.CreatedAt, c.UpdatedAt = msToTime(createdMs), msToTime(updatedMs)
	return c, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, projectID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, model_override, is_archived, rolling_summary, last_compressed_msg_id, summary_token_count, created_at_ms, updated_at_ms
		FROM conversations WHERE project_id = ? ORDER BY updated_at_ms DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var isArchived int
		var createdMs, updatedMs int64
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.ModelOverride, &isArchived,
			&c.RollingSummary, &c.LastCompressedMsgID, &c.SummaryTokenCount, &createdMs, &updatedMs); err != nil {
			return nil, err
		}
		c.IsArchived = isArchived != 0
		c.CreatedAt, c.UpdatedAt = msToTime(createdMs), msToTime(updatedMs)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete conversation")
	}
	return requireRowAffected(res, apperrors.ErrNotFound)
}

// --- Messages ---

func (s *SQLiteStore) AppendMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	attJSON, err := json.Marshal(m.Attachments)
	if err != nil {
		return Message{}, err
	}

	// Messages are ordered by (created_at_ms, id) per §3.1, and id is a
	// random UUID rather than an insertion-order sequence — two messages
	// appended within the same millisecond would otherwise sort
	// arbitrarily relative to each other. Serialise with s.mu (AppendMessage
	// shares it with UpdateSummary/ResetSummary) and bump created_at_ms past
	// the conversation's most recent message so ordering always matches
	// append order.
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var lastMs sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(created_at_ms) FROM messages WHERE conversation_id = ?`, m.ConversationID,
	).Scan(&lastMs); err != nil {
		return Message{}, errors.Wrap(err, "load last message timestamp")
	}
	createdMs := m.CreatedAt.UnixMilli()
	if lastMs.Valid && createdMs <= lastMs.Int64 {
		createdMs = lastMs.Int64 + 1
	}
	m.CreatedAt = time.UnixMilli(createdMs).UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages(id, conversation_id, role, content, thinking, attachments_json, model_used,
			input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens, cost_usd, created_at_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.Thinking, string(attJSON), m.ModelUsed,
		nullableInt(m.Usage.InputTokens), nullableInt(m.Usage.OutputTokens),
		nullableInt(m.Usage.CacheReadTokens), nullableInt(m.Usage.CacheCreationTokens),
		m.Usage.CostUSD, createdMs)
	if err != nil {
		return Message{}, errors.Wrap(err, "insert message")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at_ms = ? WHERE id = ?`, nowMs(), m.ConversationID); err != nil {
		return Message{}, errors.Wrap(err, "touch conversation")
	}
	if err := tx.Commit(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// nullableInt passes a Usage counter through unchanged. The zero value of
// int is indistinguishable from "unset" here, so AppendMessage persists 0
// rather than NULL for counters the caller never set (e.g. user
// messages). Real counters are written by AppendMessage when the caller
// fills Usage, or later by BackfillUsage.
func nullableInt(v int) interface{} { return v }

func (s *SQLiteStore) BackfillUsage(ctx context.Context, messageID string, u Usage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET input_tokens = ?, output_tokens = ?, cache_read_tokens = ?, cache_creation_tokens = ?, cost_usd = ?
		WHERE id = ?`,
		u.InputTokens, u.OutputTokens, u.CacheReadTokens, u.CacheCreationTokens, u.CostUSD, messageID)
	if err != nil {
		return errors.Wrap(err, "backfill usage")
	}
	return requireRowAffected(res, apperrors.ErrNotFound)
}

func (s *SQLiteStore) GetMessages(ctx context.Context, convID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, thinking, attachments_json, model_used,
			input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens, cost_usd, created_at_ms
		FROM messages WHERE conversation_id = ? ORDER BY created_at_ms ASC, id ASC`, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role, attJSON string
		var input, output, cacheRead, cacheCreation sql.NullInt64
		var cost sql.NullFloat64
		var createdMs int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Thinking, &attJSON, &m.ModelUsed,
			&input, &output, &cacheRead, &cacheCreation, &cost, &createdMs); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if attJSON != "" {
			_ = json.Unmarshal([]byte(attJSON), &m.Attachments)
		}
		m.Usage = Usage{
			InputTokens:         int(input.Int64),
			OutputTokens:        int(output.Int64),
			CacheReadTokens:     int(cacheRead.Int64),
			CacheCreationTokens: int(cacheCreation.Int64),
		}
		if cost.Valid {
			v := cost.Float64
			m.Usage.CostUSD = &v
		}
		m.CreatedAt = msToTime(createdMs)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, rows.Err()
}

// UpdateSummary is the atomic three-field write described in §4.1. It is
// serialised by s.mu so a concurrent message append and a summary update
// on the same conversation never interleave their staleness check and
// write (§5's per-conversation lock).
func (s *SQLiteStore) UpdateSummary(ctx context.Context, convID, summary, cutoffMsgID string, tokenCount int) error {
	if summary == "" || tokenCount <= 0 {
		return errors.New("update summary: summary must be non-empty with a positive token count")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cutoffMs int64
	err = tx.QueryRowContext(ctx, `SELECT created_at_ms FROM messages WHERE id = ? AND conversation_id = ?`, cutoffMsgID, convID).Scan(&cutoffMs)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(apperrors.ErrStaleCutoff, "cutoff message does not belong to conversation")
	}
	if err != nil {
		return err
	}

	var currentCutoffMs sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT m.created_at_ms FROM conversations c
		LEFT JOIN messages m ON m.id = c.last_compressed_msg_id
		WHERE c.id = ?`, convID).Scan(&currentCutoffMs)
	if err != nil {
		return err
	}
	if currentCutoffMs.Valid && currentCutoffMs.Int64 >= cutoffMs {
		return errors.Wrap(apperrors.ErrStaleCutoff, "cutoff does not advance past current compression")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET rolling_summary = ?, last_compressed_msg_id = ?, summary_token_count = ?, updated_at_ms = ?
		WHERE id = ?`,
		summary, cutoffMsgID, tokenCount, nowMs(), convID)
	if err != nil {
		return errors.Wrap(err, "update summary")
	}
	if err := requireRowAffected(res, apperrors.ErrNotFound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ResetSummary(ctx context.Context, convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET rolling_summary = '', last_compressed_msg_id = '', summary_token_count = 0, updated_at_ms = ?
		WHERE id = ?`, nowMs(), convID)
	if err != nil {
		return errors.Wrap(err, "reset summary")
	}
	return requireRowAffected(res, apperrors.ErrNotFound)
}

func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
