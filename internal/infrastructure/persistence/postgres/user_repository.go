package postgres

import (
	"context"
	"errors"
	"time"

	"user-hub/internal/database"
	"user-hub/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, nickname, first_name, last_name, bio,
	profile_picture_url, github_profile_url, linkedin_profile_url,
	role, is_professional, professional_status_updated_at,
	email_verified, verification_token,
	password_reset_token, password_reset_expires_at,
	last_login_at, version, created_at, updated_at`

type UserRepository struct {
	db database.DB
}

func NewUserRepository(db database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u user.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, nickname, first_name, last_name, bio,
			profile_picture_url, github_profile_url, linkedin_profile_url,
			role, is_professional, email_verified, verification_token
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.Email, u.PasswordHash, u.Nickname, u.FirstName, u.LastName, u.Bio,
		u.ProfilePictureURL, u.GithubProfileURL, u.LinkedinProfileURL,
		u.Role.String(), u.IsProfessional, u.EmailVerified, u.VerificationToken,
	)
	if isUniqueViolation(err) {
		return user.ErrDuplicateEmail
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

// Update writes every mutable column guarded by the version the caller read.
// A zero-row result with a live target means someone else won the race.
func (r *UserRepository) Update(ctx context.Context, u user.User) (user.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET
			email = $1,
			password_hash = $2,
			nickname = $3,
			first_name = $4,
			last_name = $5,
			bio = $6,
			profile_picture_url = $7,
			github_profile_url = $8,
			linkedin_profile_url = $9,
			role = $10,
			is_professional = $11,
			professional_status_updated_at = $12,
			email_verified = $13,
			verification_token = $14,
			password_reset_token = $15,
			password_reset_expires_at = $16,
			version = version + 1,
			updated_at = now()
		WHERE id = $17 AND version = $18
		RETURNING `+userColumns,
		u.Email, u.PasswordHash, u.Nickname, u.FirstName, u.LastName, u.Bio,
		u.ProfilePictureURL, u.GithubProfileURL, u.LinkedinProfileURL,
		u.Role.String(), u.IsProfessional, u.ProfessionalStatusUpdatedAt,
		u.EmailVerified, u.VerificationToken,
		u.PasswordResetToken, u.PasswordResetExpiresAt,
		u.ID, u.Version,
	)

	updated, err := scanUser(row)
	if err == nil {
		return updated, nil
	}
	if isUniqueViolation(err) {
		return user.User{}, user.ErrDuplicateEmail
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	var exists bool
	if exErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, u.ID).Scan(&exists); exErr != nil {
		return user.User{}, exErr
	}
	if exists {
		return user.User{}, user.ErrVersionConflict
	}
	return user.User{}, user.ErrNotFound
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

type userRow interface {
	Scan(dest ...any) error
}

func scanUser(row userRow) (user.User, error) {
	var u user.User
	var role string
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.FirstName, &u.LastName, &u.Bio,
		&u.ProfilePictureURL, &u.GithubProfileURL, &u.LinkedinProfileURL,
		&role, &u.IsProfessional, &u.ProfessionalStatusUpdatedAt,
		&u.EmailVerified, &u.VerificationToken,
		&u.PasswordResetToken, &u.PasswordResetExpiresAt,
		&u.LastLoginAt, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	u.Role = user.ParseRole(role)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
