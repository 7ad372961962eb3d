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

// clientRow mirrors the client table. Scopes are stored space-delimited.
type clientRow struct {
	ID        string    `db:"id"`
	Secret    string    `db:"secret"`
	Label     string    `db:"label"`
	Scopes    string    `db:"scopes"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row clientRow) toDomain() *domain.Client {
	return &domain.Client{
		ID:        row.ID,
		Secret:    row.Secret,
		Label:     row.Label,
		Scopes:    strings.Fields(row.Scopes),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toClientRow(client *domain.Client) clientRow {
	return clientRow{
		ID:        client.ID,
		Secret:    client.Secret,
		Label:     client.Label,
		Scopes:    strings.Join(client.Scopes, " "),
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
	}
}

type clientRepository struct {
	db *DB
}

func NewClientRepository(db *DB) repository.ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO client (id, secret, label, scopes, created_at, updated_at)
		VALUES (:id, :secret, :label, :scopes, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, toClientRow(client)); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *clientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	var row clientRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, secret, label, scopes, created_at, updated_at FROM client WHERE id = ?`,
		id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return row.toDomain(), nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	query := `
		UPDATE client SET label = :label, scopes = :scopes, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, toClientRow(client))
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return requireRow(result, "client", client.ID)
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM client WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return requireRow(result, "client", id)
}

func (r *clientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	var rows []clientRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, secret, label, scopes, created_at, updated_at FROM client ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	clients := make([]*domain.Client, len(rows))
	for i, row := range rows {
		clients[i] = row.toDomain()
	}
	return clients, nil
}
