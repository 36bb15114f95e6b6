package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// ProfileTable reads and writes one role's profile table. Queries are built
// from package constants only.
type ProfileTable struct {
	db       *sql.DB
	table    string
	selectQ  string
	scan     func(row rowScanner) (*domain.Profile, error)
	findQ    string
	findArgs func(u *domain.User) []any
	// insert is nil for tables this service must not write.
	insert func(ctx context.Context, db *sql.DB, u *domain.User) (*domain.Profile, error)
}

var _ ports.ProfileTable = (*ProfileTable)(nil)

func (t *ProfileTable) Load(ctx context.Context, linkedID string) (*domain.Profile, error) {
	p, err := t.scan(t.db.QueryRowContext(ctx, t.selectQ+" WHERE id = $1", linkedID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t.table, err)
	}
	return p, nil
}

func (t *ProfileTable) FindByNaturalKey(ctx context.Context, u *domain.User) (*domain.Profile, error) {
	args := t.findArgs(u)
	if args == nil {
		return nil, nil
	}
	p, err := t.scan(t.db.QueryRowContext(ctx,
		t.selectQ+" WHERE "+t.findQ+" ORDER BY created_at LIMIT 1", args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", t.table, err)
	}
	return p, nil
}

func (t *ProfileTable) Create(ctx context.Context, u *domain.User) (*domain.Profile, error) {
	if t.insert == nil {
		return nil, fmt.Errorf("%w: %s is provisioned externally", domain.ErrRepairImpossible, t.table)
	}
	p, err := t.insert(ctx, t.db, u)
	if err != nil {
		if errors.Is(err, domain.ErrRepairImpossible) {
			return nil, err
		}
		return nil, fmt.Errorf("insert %s: %w", t.table, err)
	}
	return p, nil
}

// NewProfileTables returns the profile capability of every role.
func NewProfileTables(db *sql.DB) map[domain.Role]ports.ProfileTable {
	directory := newDirectoryTable(db)
	return map[domain.Role]ports.ProfileTable{
		domain.RoleViewer:      newViewerTable(db),
		domain.RoleSystemAdmin: newSystemAdminTable(db),
		domain.RoleStudent:     newStudentTable(db),
		domain.RoleSchoolAdmin: newSchoolAdminTable(db),
		domain.RoleScoutAdmin:  directory,
		domain.RoleXenScout:    directory,
	}
}

func byDisplayName(u *domain.User) []any {
	return []any{u.Name}
}

func bySchoolAndName(u *domain.User) []any {
	if !u.HasSchool() {
		return nil
	}
	return []any{*u.SchoolID, u.Name}
}

func byUserAndSchool(u *domain.User) []any {
	if !u.HasSchool() {
		return nil
	}
	return []any{u.ID, *u.SchoolID}
}

func requireSchool(u *domain.User) (string, error) {
	if !u.HasSchool() {
		return "", fmt.Errorf("%w: no school affiliation", domain.ErrRepairImpossible)
	}
	return *u.SchoolID, nil
}

func newViewerTable(db *sql.DB) *ProfileTable {
	return &ProfileTable{
		db:      db,
		table:   "viewer_profiles",
		selectQ: "SELECT id, display_name, avatar_url FROM viewer_profiles",
		scan: func(row rowScanner) (*domain.Profile, error) {
			var p domain.Profile
			if err := row.Scan(&p.ID, &p.DisplayName, &p.AvatarURL); err != nil {
				return nil, err
			}
			return &p, nil
		},
		findQ:    "display_name = $1",
		findArgs: byDisplayName,
		insert: func(ctx context.Context, db *sql.DB, u *domain.User) (*domain.Profile, error) {
			p := &domain.Profile{ID: uuid.NewString(), DisplayName: u.Name}
			_, err := db.ExecContext(ctx,
				"INSERT INTO viewer_profiles (id, display_name) VALUES ($1, $2)", p.ID, p.DisplayName)
			return p, err
		},
	}
}

func newSystemAdminTable(db *sql.DB) *ProfileTable {
	return &ProfileTable{
		db:      db,
		table:   "system_admin_profiles",
		selectQ: "SELECT id, display_name, phone FROM system_admin_profiles",
		scan: func(row rowScanner) (*domain.Profile, error) {
			var p domain.Profile
			if err := row.Scan(&p.ID, &p.DisplayName, &p.Phone); err != nil {
				return nil, err
			}
			return &p, nil
		},
		findQ:    "display_name = $1",
		findArgs: byDisplayName,
		insert: func(ctx context.Context, db *sql.DB, u *domain.User) (*domain.Profile, error) {
			p := &domain.Profile{ID: uuid.NewString(), DisplayName: u.Name}
			_, err := db.ExecContext(ctx,
				"INSERT INTO system_admin_profiles (id, display_name) VALUES ($1, $2)", p.ID, p.DisplayName)
			return p, err
		},
	}
}

func newStudentTable(db *sql.DB) *ProfileTable {
	return &ProfileTable{
		db:      db,
		table:   "student_profiles",
		selectQ: "SELECT id, user_id, school_id, display_name, sport, position, avatar_url FROM student_profiles",
		scan: func(row rowScanner) (*domain.Profile, error) {
			var (
				p        domain.Profile
				schoolID string
			)
			if err := row.Scan(&p.ID, &p.UserID, &schoolID, &p.DisplayName, &p.Sport, &p.Position, &p.AvatarURL); err != nil {
				return nil, err
			}
			p.SchoolID = &schoolID
			return &p, nil
		},
		// Students are keyed by owner so a namesake in the same school is never adopted.
		findQ:    "user_id = $1 AND school_id = $2",
		findArgs: byUserAndSchool,
		insert: func(ctx context.Context, db *sql.DB, u *domain.User) (*domain.Profile, error) {
			schoolID, err := requireSchool(u)
			if err != nil {
				return nil, err
			}
			p := &domain.Profile{ID: uuid.NewString(), UserID: u.ID, DisplayName: u.Name, SchoolID: &schoolID}
			_, err = db.ExecContext(ctx,
				"INSERT INTO student_profiles (id, user_id, school_id, display_name) VALUES ($1, $2, $3, $4)",
				p.ID, p.UserID, schoolID, p.DisplayName)
			return p, err
		},
	}
}

func newSchoolAdminTable(db *sql.DB) *ProfileTable {
	return &ProfileTable{
		db:      db,
		table:   "school_admin_profiles",
		selectQ: "SELECT id, school_id, display_name, phone FROM school_admin_profiles",
		scan: func(row rowScanner) (*domain.Profile, error) {
			var (
				p        domain.Profile
				schoolID string
			)
			if err := row.Scan(&p.ID, &schoolID, &p.DisplayName, &p.Phone); err != nil {
				return nil, err
			}
			p.SchoolID = &schoolID
			return &p, nil
		},
		findQ:    "school_id = $1 AND display_name = $2",
		findArgs: bySchoolAndName,
		insert: func(ctx context.Context, db *sql.DB, u *domain.User) (*domain.Profile, error) {
			schoolID, err := requireSchool(u)
			if err != nil {
				return nil, err
			}
			p := &domain.Profile{ID: uuid.NewString(), DisplayName: u.Name, SchoolID: &schoolID}
			_, err = db.ExecContext(ctx,
				"INSERT INTO school_admin_profiles (id, school_id, display_name) VALUES ($1, $2, $3)",
				p.ID, schoolID, p.DisplayName)
			return p, err
		},
	}
}

func newDirectoryTable(db *sql.DB) *ProfileTable {
	return &ProfileTable{
		db:      db,
		table:   "admin_directory",
		selectQ: "SELECT id, email, display_name, organization, phone FROM admin_directory",
		scan: func(row rowScanner) (*domain.Profile, error) {
			var p domain.Profile
			if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Organization, &p.Phone); err != nil {
				return nil, err
			}
			return &p, nil
		},
		findQ: "lower(email) = lower($1)",
		findArgs: func(u *domain.User) []any {
			if u.Email == "" {
				return nil
			}
			return []any{u.Email}
		},
	}
}
