package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hdcoach-backend/internal/models"
)

type WebhookRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// ListActive returns the webhooks eligible for a relay attempt, lowest
// priority value first. Ties are broken by insertion order so equal-priority
// webhooks keep a deterministic attempt sequence.
func (r *WebhookRepo) ListActive(ctx context.Context) ([]*models.Webhook, error) {
	query := `SELECT id, name, url, priority, is_active, created_at, updated_at
		FROM webhooks WHERE is_active = TRUE
		ORDER BY priority ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWebhooks(rows)
}

// ListAll returns every webhook, active or not, for the admin surface.
func (r *WebhookRepo) ListAll(ctx context.Context) ([]*models.Webhook, error) {
	query := `SELECT id, name, url, priority, is_active, created_at, updated_at
		FROM webhooks ORDER BY priority ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWebhooks(rows)
}

func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	wh := &models.Webhook{}
	query := `SELECT id, name, url, priority, is_active, created_at, updated_at
		FROM webhooks WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&wh.ID, &wh.Name, &wh.URL, &wh.Priority, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wh, nil
}

func (r *WebhookRepo) Create(ctx context.Context, name, url string, priority int) (*models.Webhook, error) {
	wh := &models.Webhook{
		ID:       uuid.NewString(),
		Name:     name,
		URL:      url,
		Priority: priority,
		IsActive: true,
	}

	query := `INSERT INTO webhooks (id, name, url, priority, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		wh.ID, wh.Name, wh.URL, wh.Priority, wh.IsActive,
	).Scan(&wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return wh, nil
}

// Update applies a partial update; nil fields in req are left untouched.
func (r *WebhookRepo) Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	var sets []string
	var args []interface{}
	argIdx := 1

	if req.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *req.Name)
		argIdx++
	}
	if req.URL != nil {
		sets = append(sets, fmt.Sprintf("url = $%d", argIdx))
		args = append(args, *req.URL)
		argIdx++
	}
	if req.Priority != nil {
		sets = append(sets, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, *req.Priority)
		argIdx++
	}
	if req.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *req.IsActive)
		argIdx++
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE webhooks SET %s WHERE id = $%d
		RETURNING id, name, url, priority, is_active, created_at, updated_at`,
		strings.Join(sets, ", "), argIdx)

	wh := &models.Webhook{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&wh.ID, &wh.Name, &wh.URL, &wh.Priority, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wh, nil
}

func (r *WebhookRepo) ToggleActive(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	wh := &models.Webhook{}
	query := `UPDATE webhooks SET is_active = NOT is_active, updated_at = NOW() WHERE id = $1
		RETURNING id, name, url, priority, is_active, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&wh.ID, &wh.Name, &wh.URL, &wh.Priority, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return wh, nil
}

func (r *WebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	return err
}

func scanWebhooks(rows pgx.Rows) ([]*models.Webhook, error) {
	var webhooks []*models.Webhook
	for rows.Next() {
		wh := &models.Webhook{}
		err := rows.Scan(&wh.ID, &wh.Name, &wh.URL, &wh.Priority, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, wh)
	}
	return webhooks, nil
}
