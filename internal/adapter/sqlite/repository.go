package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/processiq/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements domain.ProcessRepository and domain.PhaseCatalog using SQLite.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready store.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies every pending schema migration.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const processColumns = `id, process_type, status, current_phase_id, current_phase_started_at,
	current_owner, start_at, closed_at, administradora, proposta, grupo, cota, segmento,
	cliente_nome, credito_disponivel, created_by, created_at, updated_at, version`

func (s *Store) Create(ctx context.Context, p domain.Process, created domain.Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var closedAt sql.NullString
		if p.ClosedAt != nil {
			closedAt = nullString(formatTime(*p.ClosedAt))
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO processes (`+processColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, string(p.Type), string(p.Status), nullString(p.CurrentPhaseID),
			formatTime(p.CurrentPhaseStartedAt), string(p.CurrentOwner),
			formatTime(p.StartAt), closedAt,
			p.Payload.Administradora, p.Payload.Proposta, p.Payload.Grupo,
			p.Payload.Cota, p.Payload.Segmento, p.Payload.ClienteNome,
			p.Payload.CreditoDisponivel, p.CreatedBy,
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt), p.Version,
		)
		if err != nil {
			return fmt.Errorf("inserting process: %w", err)
		}
		return insertEvent(ctx, tx, created)
	})
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Process, error) {
	p, err := scanProcess(s.db.QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM processes WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Process{}, domain.ErrProcessNotFound
	}
	return p, err
}

// List orders processes by start date, newest first.
func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]domain.Process, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != nil {
		where = append(where, "process_type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting processes: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + processColumns + ` FROM processes` + clause +
		` ORDER BY start_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing processes: %w", err)
	}
	defer rows.Close()

	var processes []domain.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, 0, err
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating processes: %w", err)
	}
	return processes, total, nil
}

func (s *Store) Update(ctx context.Context, p domain.Process, event *domain.Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateProcess(ctx, tx, p, domain.ActionEdit); err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return insertEvent(ctx, tx, *event)
	})
}

func (s *Store) Finalize(ctx context.Context, p domain.Process, event domain.Event, fb domain.Feedback) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateProcess(ctx, tx, p, domain.ActionFinalize); err != nil {
			return err
		}
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO process_feedback (id, process_id, user_satisfaction, client_satisfaction,
			 improvement_text, actor, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fb.ID, fb.ProcessID, fb.UserSatisfaction, fb.ClientSatisfaction,
			fb.ImprovementText, fb.Actor, formatTime(fb.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting feedback: %w", err)
		}
		return nil
	})
}

// updateProcess writes p over a stored row that is still open and still at
// p.Version, bumping the version.
func updateProcess(ctx context.Context, tx *sql.Tx, p domain.Process, action domain.Action) error {
	var closedAt sql.NullString
	if p.ClosedAt != nil {
		closedAt = nullString(formatTime(*p.ClosedAt))
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE processes SET status = ?, current_phase_id = ?, current_phase_started_at = ?,
		 current_owner = ?, start_at = ?, closed_at = ?, administradora = ?, proposta = ?,
		 grupo = ?, cota = ?, segmento = ?, cliente_nome = ?, credito_disponivel = ?,
		 updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = 'open'`,
		string(p.Status), nullString(p.CurrentPhaseID), formatTime(p.CurrentPhaseStartedAt),
		string(p.CurrentOwner), formatTime(p.StartAt), closedAt,
		p.Payload.Administradora, p.Payload.Proposta, p.Payload.Grupo,
		p.Payload.Cota, p.Payload.Segmento, p.Payload.ClienteNome,
		p.Payload.CreditoDisponivel, formatTime(p.UpdatedAt),
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("updating process: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing matched: tell the caller why.
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM processes WHERE id = ?`, p.ID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrProcessNotFound
	case err != nil:
		return fmt.Errorf("reading process status: %w", err)
	case domain.Status(status) != domain.StatusOpen:
		return &domain.TransitionError{Action: action, Current: domain.Status(status)}
	default:
		return &domain.VersionConflictError{ProcessID: p.ID, Version: p.Version}
	}
}

func insertEvent(ctx context.Context, tx *sql.Tx, e domain.Event) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO process_events (id, process_id, at, from_phase_id, to_phase_id, owner, note, actor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProcessID, formatTime(e.At),
		nullString(e.FromPhaseID), nullString(e.ToPhaseID),
		string(e.Owner), e.Note, e.Actor,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Events returns a process's audit trail. Events sharing a timestamp keep
// insertion order.
func (s *Store) Events(ctx context.Context, processID string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, process_id, at, from_phase_id, to_phase_id, owner, note, actor
		 FROM process_events WHERE process_id = ? ORDER BY at, rowid`, processID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e        domain.Event
			at       string
			from, to sql.NullString
			owner    string
		)
		if err := rows.Scan(&e.ID, &e.ProcessID, &at, &from, &to, &owner, &e.Note, &e.Actor); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		e.FromPhaseID = from.String
		e.ToPhaseID = to.String
		e.Owner = domain.Owner(owner)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func (s *Store) Feedback(ctx context.Context, processID string) (domain.Feedback, error) {
	var (
		fb        domain.Feedback
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, process_id, user_satisfaction, client_satisfaction, improvement_text, actor, created_at
		 FROM process_feedback WHERE process_id = ?`, processID,
	).Scan(&fb.ID, &fb.ProcessID, &fb.UserSatisfaction, &fb.ClientSatisfaction,
		&fb.ImprovementText, &fb.Actor, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Feedback{}, domain.ErrFeedbackNotFound
		}
		return domain.Feedback{}, fmt.Errorf("scanning feedback: %w", err)
	}
	if fb.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Feedback{}, err
	}
	return fb, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanProcess returns sql.ErrNoRows unwrapped so callers can map it.
func scanProcess(row scanner) (domain.Process, error) {
	var (
		p                                             domain.Process
		typ, status, owner                            string
		phaseID, closedAt                             sql.NullString
		phaseStartedAt, startAt, createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &typ, &status, &phaseID, &phaseStartedAt,
		&owner, &startAt, &closedAt,
		&p.Payload.Administradora, &p.Payload.Proposta, &p.Payload.Grupo,
		&p.Payload.Cota, &p.Payload.Segmento, &p.Payload.ClienteNome,
		&p.Payload.CreditoDisponivel, &p.CreatedBy, &createdAt, &updatedAt, &p.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Process{}, err
		}
		return domain.Process{}, fmt.Errorf("scanning process: %w", err)
	}

	p.Type = domain.ProcessType(typ)
	p.Status = domain.Status(status)
	p.CurrentPhaseID = phaseID.String
	p.CurrentOwner = domain.Owner(owner)

	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&p.CurrentPhaseStartedAt, phaseStartedAt},
		{&p.StartAt, startAt},
		{&p.CreatedAt, createdAt},
		{&p.UpdatedAt, updatedAt},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return domain.Process{}, err
		}
	}
	if closedAt.Valid {
		t, err := parseTime(closedAt.String)
		if err != nil {
			return domain.Process{}, err
		}
		p.ClosedAt = &t
	}
	return p, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
