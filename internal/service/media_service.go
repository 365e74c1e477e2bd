package service

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/rd-studio-media-api/internal/dto"
	"github.com/noah-isme/rd-studio-media-api/internal/models"
	"github.com/noah-isme/rd-studio-media-api/internal/repository"
	appErrors "github.com/noah-isme/rd-studio-media-api/pkg/errors"
	"github.com/noah-isme/rd-studio-media-api/pkg/export"
	"github.com/noah-isme/rd-studio-media-api/pkg/storage"
)

const (
	defaultMediaKeyPrefix  = "media_library"
	defaultMaxFiles        = 100
	defaultMaxFileBytes    = 200 << 20
	defaultMediaPageSize   = 20
	maxMediaPageSize       = 100
	maxExternalIDLength    = 200
	flipbookFetchWorkers   = 4
	publicMediaCachePrefix = "media:public:"
	eventDateLayout        = "2006-01-02"
)

type mediaStore interface {
	CreateWithItems(ctx context.Context, collection *models.MediaCollection, items []models.MediaItem) error
	Update(ctx context.Context, collection *models.MediaCollection, items *[]models.MediaItem) ([]string, error)
	SetFavorite(ctx context.Context, id int64, favorite bool) error
	SoftDelete(ctx context.Context, id int64) error
	Find(ctx context.Context, filter models.MediaFilter) ([]models.MediaCollection, error)
	FindOne(ctx context.Context, filter models.MediaFilter) (*models.MediaCollection, error)
	Count(ctx context.Context, filter models.MediaFilter) (int, error)
}

type batchUploader interface {
	UploadBatch(ctx context.Context, keyPrefix string, files []UploadFile) ([]UploadedItem, error)
}

type objectReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	KeyFromURL(rawURL string) (string, bool)
}

type flipbookRenderer interface {
	Render(title string, pages []export.Page) ([]byte, error)
}

type mediaCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type blobScheduler interface {
	Schedule(urls []string)
}

type eventPublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// MediaServiceConfig holds the media limits and cache settings.
type MediaServiceConfig struct {
	KeyPrefix      string
	MaxFiles       int
	MaxFileBytes   int64
	PublicCacheTTL time.Duration
}

// MediaServiceDeps groups the collaborators of MediaService. Cache, Janitor
// and Publisher are optional.
type MediaServiceDeps struct {
	Repo      mediaStore
	Uploader  batchUploader
	Objects   objectReader
	Renderer  flipbookRenderer
	Cache     mediaCache
	Janitor   blobScheduler
	Publisher eventPublisher
	Validator *validator.Validate
	Logger    *zap.Logger
}

// MediaService implements the media collection use cases.
type MediaService struct {
	repo      mediaStore
	uploader  batchUploader
	objects   objectReader
	renderer  flipbookRenderer
	cache     mediaCache
	janitor   blobScheduler
	publisher eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MediaServiceConfig
	newID     func() (string, error)
	now       func() time.Time
}

// NewMediaService builds a MediaService with sane defaults.
func NewMediaService(deps MediaServiceDeps, cfg MediaServiceConfig) *MediaService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultMediaKeyPrefix
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.PublicCacheTTL <= 0 {
		cfg.PublicCacheTTL = 5 * time.Minute
	}
	return &MediaService{
		repo:      deps.Repo,
		uploader:  deps.Uploader,
		objects:   deps.Objects,
		renderer:  deps.Renderer,
		cache:     deps.Cache,
		janitor:   deps.Janitor,
		publisher: deps.Publisher,
		validator: deps.Validator,
		logger:    deps.Logger,
		cfg:       cfg,
		newID:     NewExternalID,
		now:       time.Now,
	}
}

// Create uploads the files and persists the collection with its items. Nothing
// is written to the database when any upload fails.
func (s *MediaService) Create(ctx context.Context, req dto.CreateMediaRequest, files []UploadFile, actor *models.JWTClaims) (*models.MediaCollection, error) {
	if actor == nil || actor.OwnerID() == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	kind, err := models.ParseMediaKind(req.MediaType)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "media_items requires at least one file")
	}
	if err := s.validateFiles(files); err != nil {
		return nil, err
	}
	eventDate, err := parseEventDate(req.EventDate)
	if err != nil {
		return nil, err
	}

	externalID, err := s.newID()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate media id")
	}

	uploaded, err := s.uploader.UploadBatch(ctx, s.keyPrefix(externalID), files)
	if err != nil {
		return nil, s.uploadError(err, externalID)
	}

	collection := &models.MediaCollection{
		ExternalID:          externalID,
		Kind:                kind,
		Title:               normalizeOptional(req.MediaTitle),
		Description:         normalizeOptional(req.MediaDescription),
		StudioName:          normalizeOptional(req.StudioName),
		EventDate:           eventDate,
		InstagramProfileURL: normalizeOptional(req.InstagramProfileURL),
		WhatsappNumber:      normalizeOptional(req.WhatsappNumber),
		OwnerID:             actor.OwnerID(),
	}
	if collection.StudioName == nil {
		collection.StudioName = normalizeOptional(&actor.OrganizationName)
	}

	items := itemsFromUploads(uploaded)
	if err := s.repo.CreateWithItems(ctx, collection, items); err != nil {
		if errors.Is(err, repository.ErrDuplicateExternalID) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "media id already exists, retry the upload")
		}
		s.logger.Error("create media collection failed", zap.String("media_unique_id", externalID), zap.String("owner_id", collection.OwnerID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create media collection")
	}

	s.publish(ctx, models.MediaEventCreated, collection)
	return collection, nil
}

// Update applies metadata changes and, when files is non-nil, replaces every
// item of the collection. An empty slice clears the items.
func (s *MediaService) Update(ctx context.Context, id int64, req dto.UpdateMediaRequest, files *[]UploadFile, actor *models.JWTClaims) (*models.MediaCollection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	eventDate, err := parseEventDate(req.EventDate)
	if err != nil {
		return nil, err
	}
	if files != nil {
		if len(*files) > 0 {
			if err := s.validateFiles(*files); err != nil {
				return nil, err
			}
		}
	}

	collection, err := s.findOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if req.MediaTitle != nil {
		collection.Title = normalizeOptional(req.MediaTitle)
	}
	if req.MediaDescription != nil {
		collection.Description = normalizeOptional(req.MediaDescription)
	}
	if req.StudioName != nil {
		collection.StudioName = normalizeOptional(req.StudioName)
	}
	if req.EventDate != nil {
		collection.EventDate = eventDate
	}
	if req.InstagramProfileURL != nil {
		collection.InstagramProfileURL = normalizeOptional(req.InstagramProfileURL)
	}
	if req.WhatsappNumber != nil {
		collection.WhatsappNumber = normalizeOptional(req.WhatsappNumber)
	}
	if req.IsFavorite != nil {
		collection.IsFavorite = *req.IsFavorite
	}

	var items *[]models.MediaItem
	if files != nil {
		uploaded, err := s.uploader.UploadBatch(ctx, s.keyPrefix(collection.ExternalID), *files)
		if err != nil {
			return nil, s.uploadError(err, collection.ExternalID)
		}
		replacement := itemsFromUploads(uploaded)
		items = &replacement
	}

	removed, err := s.repo.Update(ctx, collection, items)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media collection not found")
		}
		s.logger.Error("update media collection failed", zap.Int64("id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update media collection")
	}

	if s.janitor != nil && len(removed) > 0 {
		s.janitor.Schedule(removed)
	}
	s.invalidate(ctx, collection.ExternalID)
	s.publish(ctx, models.MediaEventUpdated, collection)
	return collection, nil
}

// SetFavorite marks or unmarks a collection as favorite.
func (s *MediaService) SetFavorite(ctx context.Context, id int64, favorite bool, actor *models.JWTClaims) (*models.MediaCollection, error) {
	collection, err := s.findOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetFavorite(ctx, id, favorite); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media collection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update favorite")
	}
	collection.IsFavorite = favorite
	collection.UpdatedAt = s.now().UTC()
	s.invalidate(ctx, collection.ExternalID)
	return collection, nil
}

// SoftDelete deactivates a collection. Items and blobs are retained.
func (s *MediaService) SoftDelete(ctx context.Context, id int64, actor *models.JWTClaims) error {
	collection, err := s.findOwned(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "media collection not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete media collection")
	}
	collection.IsActive = false
	s.invalidate(ctx, collection.ExternalID)
	s.publish(ctx, models.MediaEventDeleted, collection)
	return nil
}

// Get returns an active collection owned by the actor.
func (s *MediaService) Get(ctx context.Context, id int64, actor *models.JWTClaims) (*models.MediaCollection, error) {
	return s.findOwned(ctx, id, actor)
}

// List returns the actor's active collections with pagination metadata.
func (s *MediaService) List(ctx context.Context, query dto.MediaListQuery, actor *models.JWTClaims) ([]models.MediaCollection, *models.Pagination, error) {
	if actor == nil || actor.OwnerID() == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultMediaPageSize
	}
	if size > maxMediaPageSize {
		size = maxMediaPageSize
	}

	filter := models.MediaFilter{
		OwnerID:    actor.OwnerID(),
		ActiveOnly: true,
		Favorite:   query.Favorite,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if query.MediaType != nil && strings.TrimSpace(*query.MediaType) != "" {
		kind, err := models.ParseMediaKind(*query.MediaType)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		filter.Kind = &kind
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count media collections")
	}
	collections, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list media collections")
	}
	return collections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetByExternalID resolves an active collection by its public id.
func (s *MediaService) GetByExternalID(ctx context.Context, externalID string) (*models.MediaCollection, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || len(externalID) > maxExternalIDLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid media id")
	}

	key := publicMediaCachePrefix + externalID
	if s.cache != nil {
		var cached models.MediaCollection
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("public media cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	collection, err := s.repo.FindOne(ctx, models.MediaFilter{ExternalID: externalID, ActiveOnly: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media collection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media collection")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, collection, s.cfg.PublicCacheTTL); err != nil {
			s.logger.Warn("public media cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return collection, nil
}

// ExportFlipbook renders the image items of a collection as a PDF, front
// pages first and back pages last.
func (s *MediaService) ExportFlipbook(ctx context.Context, id int64, actor *models.JWTClaims) ([]byte, string, error) {
	collection, err := s.findOwned(ctx, id, actor)
	if err != nil {
		return nil, "", err
	}

	items := slices.Clone(collection.Items)
	slices.SortStableFunc(items, func(a, b models.MediaItem) int {
		if c := cmp.Compare(a.PageRole, b.PageRole); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})

	pages, err := s.fetchPages(ctx, items)
	if err != nil {
		return nil, "", err
	}
	if len(pages) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "media collection has no images to export")
	}

	title := collection.ExternalID
	if collection.Title != nil && *collection.Title != "" {
		title = *collection.Title
	}
	pdf, err := s.renderer.Render(title, pages)
	if err != nil {
		s.logger.Error("render flipbook failed", zap.Int64("id", id), zap.Error(err))
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render flipbook")
	}
	return pdf, collection.ExternalID + ".pdf", nil
}

func (s *MediaService) fetchPages(ctx context.Context, items []models.MediaItem) ([]export.Page, error) {
	slots := make([]*export.Page, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flipbookFetchWorkers)
	for i, item := range items {
		key, ok := s.objects.KeyFromURL(item.URL)
		if !ok {
			s.logger.Warn("flipbook item outside object store", zap.Int64("item_id", item.ID), zap.String("url", item.URL))
			continue
		}
		g.Go(func() error {
			data, err := s.objects.Get(gctx, key)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotFound) {
					s.logger.Warn("flipbook object missing", zap.String("key", key))
					return nil
				}
				return fmt.Errorf("fetch %s: %w", key, err)
			}
			mtype := mimetype.Detect(data)
			if !strings.HasPrefix(mtype.String(), "image/") {
				return nil
			}
			slots[i] = &export.Page{Data: data, ContentType: mtype.String()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch flipbook pages")
	}

	pages := make([]export.Page, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages, nil
}

func (s *MediaService) findOwned(ctx context.Context, id int64, actor *models.JWTClaims) (*models.MediaCollection, error) {
	if actor == nil || actor.OwnerID() == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "media collection not found")
	}
	collection, err := s.repo.FindOne(ctx, models.MediaFilter{ID: id, OwnerID: actor.OwnerID(), ActiveOnly: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media collection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media collection")
	}
	return collection, nil
}

func (s *MediaService) validateFiles(files []UploadFile) error {
	if len(files) > s.cfg.MaxFiles {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d files per request", s.cfg.MaxFiles))
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file %q is empty", f.Name))
		}
		if int64(len(f.Data)) > s.cfg.MaxFileBytes {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file %q exceeds %d bytes", f.Name, s.cfg.MaxFileBytes))
		}
	}
	return nil
}

func (s *MediaService) uploadError(err error, externalID string) error {
	var batchErr *BatchUploadError
	if errors.As(err, &batchErr) {
		s.logger.Warn("media upload failed", zap.String("media_unique_id", externalID), zap.String("file", batchErr.FileName), zap.Error(batchErr.Err))
		return appErrors.Wrap(err, appErrors.ErrUpload.Code, appErrors.ErrUpload.Status, fmt.Sprintf("failed to upload file %s", batchErr.FileName))
	}
	s.logger.Warn("media upload aborted", zap.String("media_unique_id", externalID), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrUpload.Code, appErrors.ErrUpload.Status, appErrors.ErrUpload.Message)
}

func (s *MediaService) keyPrefix(externalID string) string {
	return path.Join(s.cfg.KeyPrefix, externalID)
}

func (s *MediaService) invalidate(ctx context.Context, externalID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, publicMediaCachePrefix+externalID); err != nil {
		s.logger.Warn("public media cache invalidation failed", zap.String("media_unique_id", externalID), zap.Error(err))
	}
}

func (s *MediaService) publish(ctx context.Context, eventType string, c *models.MediaCollection) {
	if s.publisher == nil {
		return
	}
	event := models.MediaEvent{
		Type:         eventType,
		CollectionID: c.ID,
		ExternalID:   c.ExternalID,
		OwnerID:      c.OwnerID,
		Kind:         c.Kind,
		ItemCount:    len(c.Items),
		OccurredAt:   s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, c.ExternalID, event); err != nil {
		s.logger.Warn("media event publish failed", zap.String("type", eventType), zap.String("media_unique_id", c.ExternalID), zap.Error(err))
	}
}

func itemsFromUploads(uploaded []UploadedItem) []models.MediaItem {
	items := make([]models.MediaItem, len(uploaded))
	for i, u := range uploaded {
		title := u.Title
		description := u.Description
		items[i] = models.MediaItem{
			Position:    i,
			URL:         u.URL,
			Title:       &title,
			Description: &description,
			PageRole:    u.PageRole,
		}
	}
	return items
}

func parseEventDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	date, err := time.Parse(eventDateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event_date must be YYYY-MM-DD")
	}
	return &date, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
