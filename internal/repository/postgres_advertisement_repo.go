package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/adboard/internal/model"
)

// PostgresAdvertisementRepo はPostgreSQLを使用した広告リポジトリ。
type PostgresAdvertisementRepo struct {
	db *sql.DB
}

// NewPostgresAdvertisementRepo はPostgresAdvertisementRepoを生成する。
func NewPostgresAdvertisementRepo(db *sql.DB) *PostgresAdvertisementRepo {
	return &PostgresAdvertisementRepo{db: db}
}

const selectAdvertisementColumns = `SELECT a.id, a.category, a.owner_id, u.username, a.title, a.price, a.description, a.created_at
	FROM advertisements a
	JOIN users u ON u.id = a.owner_id`

// Create は広告を作成する。
func (r *PostgresAdvertisementRepo) Create(ctx context.Context, ad *model.Advertisement) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO advertisements (category, owner_id, title, price, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		string(ad.Category), ad.OwnerID, ad.Title, ad.Price, ad.Description,
	).Scan(&ad.ID, &ad.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert advertisement: %w", err)
	}

	return nil
}

// FindByID は指定IDの広告を取得する。見つからない場合はnilを返す。
func (r *PostgresAdvertisementRepo) FindByID(ctx context.Context, id int64) (*model.Advertisement, error) {
	row := r.db.QueryRowContext(ctx, selectAdvertisementColumns+` WHERE a.id = $1`, id)

	ad, err := scanAdvertisement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find advertisement by ID: %w", err)
	}

	return ad, nil
}

// List は条件に合う広告をID昇順で返す。
func (r *PostgresAdvertisementRepo) List(ctx context.Context, filter AdvertisementFilter) ([]*model.Advertisement, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(selectAdvertisementColumns)

	if filter.Category != "" {
		args = append(args, string(filter.Category))
		fmt.Fprintf(&query, " WHERE a.category = $%d", len(args))
	}

	args = append(args, filter.Limit, filter.Offset)
	fmt.Fprintf(&query, " ORDER BY a.id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list advertisements: %w", err)
	}
	defer rows.Close()

	ads := make([]*model.Advertisement, 0)
	for rows.Next() {
		ad, err := scanAdvertisement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advertisement: %w", err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate advertisements: %w", err)
	}

	return ads, nil
}

// Delete は指定IDの広告を削除する。
func (r *PostgresAdvertisementRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM advertisements WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete advertisement: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdvertisement(s rowScanner) (*model.Advertisement, error) {
	ad := &model.Advertisement{}
	var category string
	err := s.Scan(&ad.ID, &category, &ad.OwnerID, &ad.OwnerUsername,
		&ad.Title, &ad.Price, &ad.Description, &ad.CreatedAt)
	if err != nil {
		return nil, err
	}
	ad.Category = model.Category(category)
	return ad, nil
}

// compile-time interface check
var _ AdvertisementRepository = (*PostgresAdvertisementRepo)(nil)
