package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/caravan/internal/identity/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLUserRepository handles persistence for users on either driver.
type SQLUserRepository struct {
	conn database.Connection
}

// NewSQLUserRepository creates a new SQLUserRepository.
func NewSQLUserRepository(conn database.Connection) *SQLUserRepository {
	return &SQLUserRepository{conn: conn}
}

const upsertUser = `INSERT INTO users
    (id, email, password_hash, first_name, last_name, avatar_path, gender, birth_date, languages, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
        password_hash = excluded.password_hash,
        first_name = excluded.first_name,
        last_name = excluded.last_name,
        avatar_path = excluded.avatar_path,
        gender = excluded.gender,
        birth_date = excluded.birth_date,
        languages = excluded.languages,
        updated_at = excluded.updated_at`

// Save persists a user to the database.
func (r *SQLUserRepository) Save(ctx context.Context, user *domain.User) error {
	s := user.State()
	languages := s.Languages
	if languages == nil {
		languages = []string{}
	}
	rawLanguages, err := json.Marshal(languages)
	if err != nil {
		return err
	}
	var birth any
	if s.BirthDate != nil {
		birth = s.BirthDate.UTC()
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err = exec.Exec(ctx, upsertUser,
		s.ID.String(), s.Email, s.PasswordHash, s.FirstName, s.LastName, s.AvatarPath, s.Gender,
		birth, string(rawLanguages), s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if database.IsUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, email, password_hash, first_name, last_name, avatar_path, gender,
    birth_date, languages, created_at, updated_at FROM users`

// FindByID finds a user by ID.
func (r *SQLUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	return scanUser(exec.QueryRow(ctx, selectUser+` WHERE id = ?`, id.String()))
}

// FindByEmail finds a user by email.
func (r *SQLUserRepository) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	return scanUser(exec.QueryRow(ctx, selectUser+` WHERE email = ?`, email.String()))
}

// ExistsByEmail checks if a user with the given email exists.
func (r *SQLUserRepository) ExistsByEmail(ctx context.Context, email domain.Email) (bool, error) {
	var n int
	exec := database.ExecutorFromContext(ctx, r.conn)
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email.String()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanUser(row database.Row) (*domain.User, error) {
	var (
		s         domain.UserState
		id        string
		birth     sql.NullTime
		languages string
	)
	err := row.Scan(&id, &s.Email, &s.PasswordHash, &s.FirstName, &s.LastName, &s.AvatarPath, &s.Gender,
		&birth, &languages, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if birth.Valid {
		t := birth.Time.UTC()
		s.BirthDate = &t
	}
	if languages != "" && languages != "[]" {
		if err := json.Unmarshal([]byte(languages), &s.Languages); err != nil {
			return nil, fmt.Errorf("decode languages: %w", err)
		}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return domain.RehydrateUser(s), nil
}
