package auth

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"digitaltwin-cloud/internal/eav"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrDuplicateUser is returned when the email is already registered.
	ErrDuplicateUser = errors.New("auth: duplicate user")
)

// User is a platform user account.
type User struct {
	ID    int64
	Email string
	Role  Role
}

// UserRepository stores user credentials with bcrypt-hashed passwords.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. The password is hashed before it touches the
// database.
func (r *UserRepository) Create(ctx context.Context, email, password string, role Role) (*User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if email == "" || password == "" {
		return nil, errors.New("user repo: empty email or password")
	}
	if _, ok := NormalizeRole(string(role)); !ok {
		return nil, errors.New("user repo: invalid role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
INSERT INTO users (email, password_hash, role)
VALUES ($1, $2, $3)
RETURNING id`, email, hash, string(role)).Scan(&id)
	if err != nil {
		if eav.IsUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return &User{ID: id, Email: email, Role: role}, nil
}

// Authenticate checks credentials and returns the user on success.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}

	var user User
	var hash []byte
	var role string
	err := r.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, role
FROM users
WHERE email = $1`, email).Scan(&user.ID, &user.Email, &hash, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	normalized, ok := NormalizeRole(role)
	if !ok {
		normalized = RoleViewer
	}
	user.Role = normalized
	return &user, nil
}
