package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rd-studio-media-api/internal/models"
)

// ErrDuplicateExternalID is returned when media_unique_id collides with an existing row.
var ErrDuplicateExternalID = errors.New("duplicate media external id")

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var collectionColumns = []string{
	"id", "media_unique_id", "media_type", "media_title", "media_description", "studio_name",
	"event_date", "instagram_profile_url", "whatsapp_number", "is_favorite", "created_by",
	"is_active", "created_at", "updated_at",
}

var itemColumns = []string{
	"id", "media_library_id", "position", "media_url", "media_item_title",
	"media_item_description", "page_type", "is_active", "created_at", "updated_at",
}

// MediaRepository persists media collections and their items.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository constructs the repository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateWithItems inserts the collection and all items in one transaction.
// On success the collection and items carry their generated ids and timestamps.
func (r *MediaRepository) CreateWithItems(ctx context.Context, collection *models.MediaCollection, items []models.MediaItem) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create media collection: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO media_libraries
	(media_unique_id, media_type, media_title, media_description, studio_name, event_date, instagram_profile_url, whatsapp_number, is_favorite, created_by, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
	RETURNING id, created_at, updated_at`
	err = tx.QueryRowxContext(ctx, query,
		collection.ExternalID,
		collection.Kind,
		collection.Title,
		collection.Description,
		collection.StudioName,
		collection.EventDate,
		collection.InstagramProfileURL,
		collection.WhatsappNumber,
		collection.IsFavorite,
		collection.OwnerID,
	).Scan(&collection.ID, &collection.CreatedAt, &collection.UpdatedAt)
	if err != nil {
		err = mapWriteError(err, "create media collection")
		return err
	}
	collection.IsActive = true

	if err = r.insertItems(ctx, tx, collection.ID, items); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create media collection: %w", err)
	}
	collection.Items = items
	return nil
}

// ReplaceItems swaps the item set of a collection. A nil items pointer leaves
// the current items untouched; a non-nil pointer deletes every existing item
// and inserts the new sequence, so an empty slice clears the collection.
// It returns the URLs of the removed items.
func (r *MediaRepository) ReplaceItems(ctx context.Context, exec sqlx.ExtContext, collectionID int64, items *[]models.MediaItem) ([]string, error) {
	if items == nil {
		return nil, nil
	}
	target := r.exec(exec)

	removed := make([]string, 0)
	const query = `DELETE FROM media_library_items WHERE media_library_id = $1 RETURNING media_url`
	if err := sqlx.SelectContext(ctx, target, &removed, query, collectionID); err != nil {
		return nil, fmt.Errorf("delete media items: %w", err)
	}
	if err := r.insertItems(ctx, target, collectionID, *items); err != nil {
		return nil, err
	}
	return removed, nil
}

// Update writes the mutable metadata of an active collection and, when items
// is non-nil, replaces its items in the same transaction. It returns
// sql.ErrNoRows when the collection is absent or inactive.
func (r *MediaRepository) Update(ctx context.Context, collection *models.MediaCollection, items *[]models.MediaItem) (removed []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update media collection: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE media_libraries SET
	media_title = $1, media_description = $2, studio_name = $3, event_date = $4,
	instagram_profile_url = $5, whatsapp_number = $6, is_favorite = $7, updated_at = NOW()
	WHERE id = $8 AND is_active = TRUE
	RETURNING updated_at`
	err = tx.QueryRowxContext(ctx, query,
		collection.Title,
		collection.Description,
		collection.StudioName,
		collection.EventDate,
		collection.InstagramProfileURL,
		collection.WhatsappNumber,
		collection.IsFavorite,
		collection.ID,
	).Scan(&collection.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		err = fmt.Errorf("update media collection: %w", err)
		return nil, err
	}

	removed, err = r.ReplaceItems(ctx, tx, collection.ID, items)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update media collection: %w", err)
	}
	if items != nil {
		collection.Items = *items
	}
	return removed, nil
}

// SetFavorite flips the favorite flag of an active collection.
func (r *MediaRepository) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	const query = `UPDATE media_libraries SET is_favorite = $1, updated_at = NOW() WHERE id = $2 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, favorite, id)
	if err != nil {
		return fmt.Errorf("set media favorite: %w", err)
	}
	return requireAffected(result, "set media favorite")
}

// SoftDelete marks the collection inactive. Repeating it is not an error;
// sql.ErrNoRows is returned only when the id does not exist.
func (r *MediaRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE media_libraries SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete media collection: %w", err)
	}
	return requireAffected(result, "soft delete media collection")
}

// Find returns collections matching the filter, newest first, with their items.
func (r *MediaRepository) Find(ctx context.Context, filter models.MediaFilter) ([]models.MediaCollection, error) {
	builder := applyMediaFilter(psql.Select(collectionColumns...).From("media_libraries"), filter).
		OrderBy("id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find media query: %w", err)
	}

	collections := make([]models.MediaCollection, 0)
	if err := r.db.SelectContext(ctx, &collections, query, args...); err != nil {
		return nil, fmt.Errorf("find media collections: %w", err)
	}
	if err := r.loadItems(ctx, collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// FindOne returns the single collection matching the filter or sql.ErrNoRows.
func (r *MediaRepository) FindOne(ctx context.Context, filter models.MediaFilter) (*models.MediaCollection, error) {
	filter.Limit = 1
	filter.Offset = 0
	collections, err := r.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, sql.ErrNoRows
	}
	return &collections[0], nil
}

// Count returns the number of collections matching the filter, ignoring paging.
func (r *MediaRepository) Count(ctx context.Context, filter models.MediaFilter) (int, error) {
	query, args, err := applyMediaFilter(psql.Select("COUNT(*)").From("media_libraries"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count media query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count media collections: %w", err)
	}
	return total, nil
}

// ExistingURLs reports which of the given URLs are still referenced by an item.
func (r *MediaRepository) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	const chunkSize = 500
	existing := make(map[string]bool, len(urls))
	for start := 0; start < len(urls); start += chunkSize {
		end := start + chunkSize
		if end > len(urls) {
			end = len(urls)
		}
		query, args, err := psql.Select("media_url").
			From("media_library_items").
			Where(sq.Eq{"media_url": urls[start:end]}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build existing urls query: %w", err)
		}
		var found []string
		if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
			return nil, fmt.Errorf("list existing media urls: %w", err)
		}
		for _, u := range found {
			existing[u] = true
		}
	}
	return existing, nil
}

func (r *MediaRepository) insertItems(ctx context.Context, exec sqlx.ExtContext, collectionID int64, items []models.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	builder := psql.Insert("media_library_items").
		Columns("media_library_id", "position", "media_url", "media_item_title", "media_item_description", "page_type", "is_active").
		Suffix("RETURNING id, created_at, updated_at")
	for i := range items {
		item := &items[i]
		item.CollectionID = collectionID
		item.Position = i
		item.IsActive = true
		builder = builder.Values(collectionID, i, item.URL, item.Title, item.Description, item.PageRole, true)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert media items: %w", err)
	}

	rows, err := exec.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert media items: %w", err)
	}
	defer rows.Close()
	i := 0
	for rows.Next() {
		if i >= len(items) {
			break
		}
		if err := rows.Scan(&items[i].ID, &items[i].CreatedAt, &items[i].UpdatedAt); err != nil {
			return fmt.Errorf("scan media item: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("insert media items: %w", err)
	}
	return nil
}

func (r *MediaRepository) loadItems(ctx context.Context, collections []models.MediaCollection) error {
	if len(collections) == 0 {
		return nil
	}
	ids := make([]int64, len(collections))
	index := make(map[int64]int, len(collections))
	for i := range collections {
		ids[i] = collections[i].ID
		index[collections[i].ID] = i
		collections[i].Items = make([]models.MediaItem, 0)
	}

	query, args, err := psql.Select(itemColumns...).
		From("media_library_items").
		Where(sq.Eq{"media_library_id": ids}).
		OrderBy("media_library_id", "position", "id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build load media items: %w", err)
	}
	var items []models.MediaItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("load media items: %w", err)
	}
	for _, item := range items {
		if i, ok := index[item.CollectionID]; ok {
			collections[i].Items = append(collections[i].Items, item)
		}
	}
	return nil
}

func applyMediaFilter(builder sq.SelectBuilder, filter models.MediaFilter) sq.SelectBuilder {
	if filter.ID > 0 {
		builder = builder.Where(sq.Eq{"id": filter.ID})
	}
	if filter.OwnerID != "" {
		builder = builder.Where(sq.Eq{"created_by": filter.OwnerID})
	}
	if filter.ExternalID != "" {
		builder = builder.Where(sq.Eq{"media_unique_id": filter.ExternalID})
	}
	if filter.ActiveOnly {
		builder = builder.Where(sq.Eq{"is_active": true})
	}
	if filter.Favorite != nil {
		builder = builder.Where(sq.Eq{"is_favorite": *filter.Favorite})
	}
	if filter.Kind != nil {
		builder = builder.Where(sq.Eq{"media_type": *filter.Kind})
	}
	return builder
}

func requireAffected(result sql.Result, action string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", action, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func mapWriteError(err error, action string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateExternalID
	}
	return fmt.Errorf("%s: %w", action, err)
}
