// Package roster persists students, window rules, and the append-only
// attendance event log in Postgres.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"teamkiosk/internal/attendance"
	"teamkiosk/internal/schedule"
)

// Student is a team member known to the kiosk.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned for lookups of unknown students or rules.
var ErrNotFound = errors.New("roster: not found")

// Repository wraps all roster queries.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables on first boot.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_events (
			id          UUID PRIMARY KEY,
			student_id  TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			action      TEXT NOT NULL CHECK (action IN ('sign_in', 'sign_out')),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_occurred ON attendance_events (occurred_at)`,
		`CREATE TABLE IF NOT EXISTS window_rules (
			id         UUID PRIMARY KEY,
			weekday    INT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			start_hour INT NOT NULL,
			start_min  INT NOT NULL,
			end_hour   INT NOT NULL,
			end_min    INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertStudent creates or renames a student.
func (r *Repository) UpsertStudent(ctx context.Context, id, name string) error {
	if id == "" || name == "" {
		return errors.New("student id and name required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, name)
	return err
}

// GetStudent returns one student or ErrNotFound.
func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	return s, nil
}

// ListStudents returns all students ordered by name.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM students ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// DeleteStudent removes a student. The event log is left untouched; the
// transform simply stops seeing the id in the roster.
func (r *Repository) DeleteStudent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEvent writes one sign-in/out entry. Events are never updated or
// deleted here.
func (r *Repository) AppendEvent(ctx context.Context, evt attendance.Event) error {
	if evt.StudentID == "" {
		return errors.New("student id required")
	}
	if evt.Action != attendance.ActionSignIn && evt.Action != attendance.ActionSignOut {
		return fmt.Errorf("unknown action %q", evt.Action)
	}
	if evt.At.IsZero() {
		return errors.New("timestamp required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, student_id, occurred_at, action)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), evt.StudentID, evt.At.UTC(), string(evt.Action))
	return err
}

// ListEventsAscending returns the whole log in timestamp order, the order
// the transformer requires.
func (r *Repository) ListEventsAscending(ctx context.Context) ([]attendance.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, occurred_at, action
		FROM attendance_events
		ORDER BY occurred_at, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []attendance.Event
	for rows.Next() {
		var evt attendance.Event
		var action string
		if err := rows.Scan(&evt.StudentID, &evt.At, &action); err != nil {
			return nil, err
		}
		evt.Action = attendance.Action(action)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// LastEventBetween returns a student's most recent event in [from, to), or
// nil when there is none. The kiosk toggle uses this to decide whether a
// tap means sign-in or sign-out.
func (r *Repository) LastEventBetween(ctx context.Context, studentID string, from, to time.Time) (*attendance.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, occurred_at, action
		FROM attendance_events
		WHERE student_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at DESC, created_at DESC
		LIMIT 1
	`, studentID, from.UTC(), to.UTC())
	var evt attendance.Event
	var action string
	if err := row.Scan(&evt.StudentID, &evt.At, &action); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	evt.Action = attendance.Action(action)
	return &evt, nil
}

// SignedInBetween returns the ids of students whose last event in [from, to)
// is a sign_in, i.e. who are on the floor right now.
func (r *Repository) SignedInBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (student_id) student_id, action
		FROM attendance_events
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY student_id, occurred_at DESC, created_at DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, action string
		if err := rows.Scan(&id, &action); err != nil {
			return nil, err
		}
		if attendance.Action(action) == attendance.ActionSignIn {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// InsertRule stores a window rule after validation.
func (r *Repository) InsertRule(ctx context.Context, rule schedule.Rule) (schedule.Rule, error) {
	if err := rule.Validate(); err != nil {
		return schedule.Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO window_rules (id, weekday, start_hour, start_min, end_hour, end_min)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rule.ID, int(rule.Weekday), rule.StartHour, rule.StartMin, rule.EndHour, rule.EndMin)
	if err != nil {
		return schedule.Rule{}, err
	}
	return rule, nil
}

// ListRules returns all rules in a stable order: weekday, then start time,
// then insertion order. Occurrence generation depends on this ordering being
// deterministic.
func (r *Repository) ListRules(ctx context.Context) ([]schedule.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, weekday, start_hour, start_min, end_hour, end_min
		FROM window_rules
		ORDER BY weekday, start_hour, start_min, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []schedule.Rule
	for rows.Next() {
		var rule schedule.Rule
		var weekday int
		if err := rows.Scan(&rule.ID, &weekday, &rule.StartHour, &rule.StartMin, &rule.EndHour, &rule.EndMin); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DeleteRule removes a rule.
func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM window_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
