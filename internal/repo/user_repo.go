package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/imemory/server/internal/model"
)

const uniqueViolation = "23505"

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a Postgres-backed UserRepo
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `
	id, name, email, phone_number, password_hash,
	is_email_verified, is_phone_verified,
	email_verification_code, phone_verification_code, verification_code_expiry,
	password_reset_code, password_reset_code_expiry,
	sms_notifications_enabled, created_at, updated_at`

// Create inserts a new identity and assigns its ID
func (r *userRepo) Create(ctx context.Context, u *model.Identity) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		u.ID, u.Name, u.Email, nullIfEmpty(u.PhoneNumber), u.PasswordHash,
		u.IsEmailVerified, u.IsPhoneVerified,
		u.EmailVerificationCode, u.PhoneVerificationCode, u.VerificationCodeExpiry,
		u.PasswordResetCode, u.PasswordResetCodeExpiry,
		u.SMSNotificationsEnabled, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id string) (model.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Identity{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by normalized email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
}

// GetByPhone retrieves a user by phone number
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.Identity, error) {
	if phone == "" {
		return model.Identity{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
}

// Save overwrites the mutable fields of an existing user
func (r *userRepo) Save(ctx context.Context, u *model.Identity) error {
	u.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			name = $2, email = $3, phone_number = $4, password_hash = $5,
			is_email_verified = $6, is_phone_verified = $7,
			email_verification_code = $8, phone_verification_code = $9, verification_code_expiry = $10,
			password_reset_code = $11, password_reset_code_expiry = $12,
			sms_notifications_enabled = $13, updated_at = $14
		WHERE id = $1
	`,
		u.ID, u.Name, NormalizeEmail(u.Email), nullIfEmpty(u.PhoneNumber), u.PasswordHash,
		u.IsEmailVerified, u.IsPhoneVerified,
		u.EmailVerificationCode, u.PhoneVerificationCode, u.VerificationCodeExpiry,
		u.PasswordResetCode, u.PasswordResetCodeExpiry,
		u.SMSNotificationsEnabled, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (model.Identity, error) {
	var u model.Identity
	var phone sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &phone, &u.PasswordHash,
		&u.IsEmailVerified, &u.IsPhoneVerified,
		&u.EmailVerificationCode, &u.PhoneVerificationCode, &u.VerificationCodeExpiry,
		&u.PasswordResetCode, &u.PasswordResetCodeExpiry,
		&u.SMSNotificationsEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Identity{}, ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to query user: %w", err)
	}
	u.PhoneNumber = phone.String
	return u, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
