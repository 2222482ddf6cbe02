package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/processiq/internal/domain"
)

const phaseColumns = `id, process_type, name, sla_kind, sla_days, sla_minutes,
	position, active, terminal, created_at, updated_at`

// ListPhases returns phases ordered by position; equal positions keep
// creation order.
func (s *Store) ListPhases(ctx context.Context, filter domain.PhaseFilter) ([]domain.Phase, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "process_type = ?")
		args = append(args, string(filter.Type))
	}
	if !filter.IncludeInactive {
		where = append(where, "active = 1")
	}
	query := `SELECT ` + phaseColumns + ` FROM process_phases`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY position, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing phases: %w", err)
	}
	defer rows.Close()

	var phases []domain.Phase
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating phases: %w", err)
	}
	return phases, nil
}

func (s *Store) GetPhase(ctx context.Context, id string) (domain.Phase, error) {
	p, err := scanPhase(s.db.QueryRowContext(ctx,
		`SELECT `+phaseColumns+` FROM process_phases WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Phase{}, domain.ErrPhaseNotFound
	}
	return p, err
}

func (s *Store) CreatePhase(ctx context.Context, p domain.Phase) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO process_phases (`+phaseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Type), p.Name, string(p.SLA.Kind), p.SLA.Days, p.SLA.Minutes,
		p.Position, p.Active, p.Terminal,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isTerminalConflict(err) {
			return &domain.TerminalPhaseConflictError{Type: p.Type}
		}
		return fmt.Errorf("inserting phase: %w", err)
	}
	return nil
}

func (s *Store) UpdatePhase(ctx context.Context, p domain.Phase) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE process_phases SET name = ?, sla_kind = ?, sla_days = ?, sla_minutes = ?,
		 position = ?, active = ?, terminal = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, string(p.SLA.Kind), p.SLA.Days, p.SLA.Minutes,
		p.Position, p.Active, p.Terminal, formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		if isTerminalConflict(err) {
			return &domain.TerminalPhaseConflictError{Type: p.Type}
		}
		return fmt.Errorf("updating phase: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrPhaseNotFound
	}
	return nil
}

// isTerminalConflict reports a violation of the one-active-terminal-phase index.
// SQLite names the indexed column, not the index, in the message.
func isTerminalConflict(err error) bool {
	return isUniqueViolation(err) && strings.Contains(err.Error(), "process_phases.process_type")
}

func scanPhase(row scanner) (domain.Phase, error) {
	var (
		p                    domain.Phase
		typ, kind            string
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &typ, &p.Name, &kind, &p.SLA.Days, &p.SLA.Minutes,
		&p.Position, &p.Active, &p.Terminal, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Phase{}, err
		}
		return domain.Phase{}, fmt.Errorf("scanning phase: %w", err)
	}
	p.Type = domain.ProcessType(typ)
	p.SLA.Kind = domain.SLAKind(kind)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Phase{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Phase{}, err
	}
	return p, nil
}
