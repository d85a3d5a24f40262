// Package auth implements user accounts, sessions, and the request
// middleware that stamps the authenticated identity into context.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	stdtime "time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/kuitang/quicknotes/internal/db"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Argon2id parameters (OWASP second recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string, so hashes created with
// different parameters still verify correctly.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024 // ~19 MiB
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// User represents a user account.
type User struct {
	ID        string
	Email     string
	CreatedAt stdtime.Time
}

// UserService handles user account operations.
type UserService struct {
	db    *db.DB
	clock Clock
}

// NewUserService creates a new user service.
func NewUserService(database *db.DB) *UserService {
	return &UserService{
		db:    database,
		clock: realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register creates a new account with email/password.
// Returns ErrAccountExists if the email is already registered.
func (s *UserService) Register(ctx context.Context, emailAddr, password string) (*User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil, fmt.Errorf("email is required")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	_, err := s.findByEmail(ctx, emailAddr)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check account existence: %w", err)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:        "user-" + uuid.New().String(),
		Email:     emailAddr,
		CreatedAt: s.clock.Now(),
	}

	_, err = s.db.SQL().ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Email, passwordHash, user.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	return user, nil
}

// VerifyLogin verifies email/password credentials for an existing account.
// Returns ErrInvalidCredentials if the user doesn't exist or the password
// is wrong; the two cases are indistinguishable to the caller.
func (s *UserService) VerifyLogin(ctx context.Context, emailAddr, password string) (*User, error) {
	emailAddr = normalizeEmail(emailAddr)

	var (
		user      User
		hash      string
		createdAt int64
	)
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = ?
	`, emailAddr).Scan(&user.ID, &user.Email, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	if !VerifyPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}

	user.CreatedAt = stdtime.Unix(createdAt, 0)
	return &user, nil
}

// GetByID fetches a user account by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, email, created_at FROM users WHERE id = ?
	`, userID).Scan(&user.ID, &user.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	user.CreatedAt = stdtime.Unix(createdAt, 0)
	return &user, nil
}

func (s *UserService) findByEmail(ctx context.Context, emailAddr string) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, email, created_at FROM users WHERE email = ?
	`, emailAddr).Scan(&user.ID, &user.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = stdtime.Unix(createdAt, 0)
	return &user, nil
}

// ValidatePasswordStrength checks if a password meets minimum requirements.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches a hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	if parts[1] != "argon2id" {
		return false
	}

	if parts[2] != "v=19" {
		return false
	}

	var memory, time uint32
	var threads uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads)
	if err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	hashLen := len(hashBytes)
	if hashLen <= 0 || hashLen > argon2KeyLen*2 {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), saltBytes, time, memory, threads, uint32(hashLen))

	return subtle.ConstantTimeCompare(hashBytes, computedHash) == 1
}

func normalizeEmail(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}
