package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const uniqueViolation = "23505"

// DBTX is the subset of *sql.DB and *sql.Tx the repository uses.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ProfileRepository stores profiles in the profiles table.
type ProfileRepository struct {
	db DBTX
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	query :=
		`SELECT id, name, surname, role, responsible_name, email, photo_url, job_title, function
		 FROM profiles
		 WHERE id = $1`

	var (
		p    domain.Profile
		role string
	)
	var name, surname, photoURL, jobTitle, function sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &name, &surname, &role, &p.ResponsibleName, &p.Email, &photoURL, &jobTitle, &function,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}

	p.Role = domain.Role(role)
	p.Name = nullable(name)
	p.Surname = nullable(surname)
	p.PhotoURL = nullable(photoURL)
	p.JobTitle = nullable(jobTitle)
	p.Function = nullable(function)
	return &p, nil
}

func (r *ProfileRepository) Insert(ctx context.Context, p *domain.Profile) error {
	query :=
		`INSERT INTO profiles (id, name, surname, role, responsible_name, email, photo_url, job_title, function)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Surname, string(p.Role), p.ResponsibleName, p.Email, p.PhotoURL, p.JobTitle, p.Function)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert profile %s: %w", p.ID, domain.ErrUserExists)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	query :=
		`UPDATE profiles SET role = $2, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, string(role))
	if err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	if n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
