package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
)

type authCodeRow struct {
	Code      string    `db:"code"`
	Username  string    `db:"username"`
	Scopes    string    `db:"scopes"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

type authCodeRepository struct {
	db *DB
}

func NewAuthCodeRepository(db *DB) repository.AuthCodeRepository {
	return &authCodeRepository{db: db}
}

func (r *authCodeRepository) Create(ctx context.Context, authCode *domain.AuthCode) error {
	query := `
		INSERT INTO auth_code (code, username, scopes, expires_at, created_at)
		VALUES (:code, :username, :scopes, :expires_at, :created_at)
	`
	row := authCodeRow{
		Code:      authCode.Code,
		Username:  authCode.Username,
		Scopes:    strings.Join(authCode.Scopes, " "),
		ExpiresAt: authCode.ExpiresAt,
		CreatedAt: authCode.CreatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create auth code: %w", err)
	}
	return nil
}

func (r *authCodeRepository) FindByCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	var row authCodeRow
	err := r.db.GetContext(ctx, &row,
		`SELECT code, username, scopes, expires_at, created_at FROM auth_code WHERE code = ?`,
		code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auth code not found: %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth code: %w", err)
	}

	return &domain.AuthCode{
		Code:      row.Code,
		Username:  row.Username,
		Scopes:    strings.Fields(row.Scopes),
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (r *authCodeRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auth_code WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete auth code: %w", err)
	}
	return requireRow(result, "auth code", code)
}

func (r *authCodeRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_code WHERE expires_at < ?`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired auth codes: %w", err)
	}
	return nil
}
