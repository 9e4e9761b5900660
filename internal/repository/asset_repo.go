package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AssetRepository stores references to generated content.
type AssetRepository interface {
	CreateAsset(ctx context.Context, a *model.GeneratedAsset) error
	ListAssetsByUser(ctx context.Context, userID string, limit, offset int) ([]model.GeneratedAsset, error)
}

type assetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) AssetRepository {
	return &assetRepo{pool: pool}
}

func (r *assetRepo) CreateAsset(ctx context.Context, a *model.GeneratedAsset) error {
	refs, err := json.Marshal(a.SourceRefs)
	if err != nil {
		return fmt.Errorf("marshal source refs: %w", err)
	}
	const q = `
        INSERT INTO generated_assets (id, user_id, operation, prompt, source_refs, storage_path, remote_url, caption)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
        RETURNING created_at
    `
	err = r.pool.QueryRow(ctx, q,
		a.ID, a.UserID, string(a.Operation), a.Prompt, string(refs), a.StoragePath, a.RemoteURL, a.Caption,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset for user %s: %w", a.UserID, err)
	}
	return nil
}

func (r *assetRepo) ListAssetsByUser(ctx context.Context, userID string, limit, offset int) ([]model.GeneratedAsset, error) {
	const q = `
        SELECT id, user_id, operation, prompt, source_refs, storage_path, remote_url, caption, created_at
        FROM generated_assets
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query assets for user %s: %w", userID, err)
	}
	defer rows.Close()

	var assets []model.GeneratedAsset
	for rows.Next() {
		var a model.GeneratedAsset
		var rawRefs []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Operation, &a.Prompt, &rawRefs, &a.StoragePath, &a.RemoteURL, &a.Caption, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		if len(rawRefs) > 0 {
			if err := json.Unmarshal(rawRefs, &a.SourceRefs); err != nil {
				return nil, fmt.Errorf("unmarshal source_refs for asset %s: %w", a.ID, err)
			}
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
