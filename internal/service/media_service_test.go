package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rd-studio-media-api/internal/dto"
	"github.com/noah-isme/rd-studio-media-api/internal/models"
	"github.com/noah-isme/rd-studio-media-api/internal/repository"
	"github.com/noah-isme/rd-studio-media-api/pkg/compressor"
	appErrors "github.com/noah-isme/rd-studio-media-api/pkg/errors"
	"github.com/noah-isme/rd-studio-media-api/pkg/export"
)

type fakeMediaRepo struct {
	mu          sync.Mutex
	nextID      int64
	collections map[int64]*models.MediaCollection
	createErr   error
	createCalls int
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{collections: map[int64]*models.MediaCollection{}}
}

func cloneCollection(c *models.MediaCollection) *models.MediaCollection {
	out := *c
	out.Items = append([]models.MediaItem(nil), c.Items...)
	return &out
}

func (r *fakeMediaRepo) CreateWithItems(_ context.Context, c *models.MediaCollection, items []models.MediaItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	c.ID = r.nextID
	c.IsActive = true
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	for i := range items {
		items[i].ID = int64(i + 1)
		items[i].CollectionID = c.ID
		items[i].IsActive = true
	}
	c.Items = items
	r.collections[c.ID] = cloneCollection(c)
	return nil
}

func (r *fakeMediaRepo) Update(_ context.Context, c *models.MediaCollection, items *[]models.MediaItem) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.collections[c.ID]
	if !ok || !stored.IsActive {
		return nil, sql.ErrNoRows
	}
	var removed []string
	if items != nil {
		for _, item := range stored.Items {
			removed = append(removed, item.URL)
		}
		c.Items = *items
	} else {
		c.Items = stored.Items
	}
	c.UpdatedAt = time.Now()
	r.collections[c.ID] = cloneCollection(c)
	return removed, nil
}

func (r *fakeMediaRepo) SetFavorite(_ context.Context, id int64, favorite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.collections[id]
	if !ok || !stored.IsActive {
		return sql.ErrNoRows
	}
	stored.IsFavorite = favorite
	return nil
}

func (r *fakeMediaRepo) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.collections[id]
	if !ok || !stored.IsActive {
		return sql.ErrNoRows
	}
	stored.IsActive = false
	return nil
}

func (r *fakeMediaRepo) matches(c *models.MediaCollection, f models.MediaFilter) bool {
	switch {
	case f.ID != 0 && c.ID != f.ID:
		return false
	case f.OwnerID != "" && c.OwnerID != f.OwnerID:
		return false
	case f.ExternalID != "" && c.ExternalID != f.ExternalID:
		return false
	case f.ActiveOnly && !c.IsActive:
		return false
	case f.Favorite != nil && c.IsFavorite != *f.Favorite:
		return false
	case f.Kind != nil && c.Kind != *f.Kind:
		return false
	}
	return true
}

func (r *fakeMediaRepo) Find(_ context.Context, f models.MediaFilter) ([]models.MediaCollection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MediaCollection
	for id := int64(1); id <= r.nextID; id++ {
		if c, ok := r.collections[id]; ok && r.matches(c, f) {
			out = append(out, *cloneCollection(c))
		}
	}
	if f.Offset >= len(out) {
		return []models.MediaCollection{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeMediaRepo) FindOne(ctx context.Context, f models.MediaFilter) (*models.MediaCollection, error) {
	f.Limit, f.Offset = 0, 0
	found, _ := r.Find(ctx, f)
	if len(found) == 0 {
		return nil, sql.ErrNoRows
	}
	return &found[0], nil
}

func (r *fakeMediaRepo) Count(ctx context.Context, f models.MediaFilter) (int, error) {
	f.Limit, f.Offset = 0, 0
	found, _ := r.Find(ctx, f)
	return len(found), nil
}

type fakeMediaCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newFakeMediaCache() *fakeMediaCache {
	return &fakeMediaCache{entries: map[string][]byte{}}
}

func (c *fakeMediaCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeMediaCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *fakeMediaCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

type recordingJanitor struct {
	urls []string
}

func (j *recordingJanitor) Schedule(urls []string) {
	j.urls = append(j.urls, urls...)
}

type recordingPublisher struct {
	events []models.MediaEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload interface{}) error {
	p.events = append(p.events, payload.(models.MediaEvent))
	return nil
}

type capturingRenderer struct {
	title string
	pages []export.Page
}

func (r *capturingRenderer) Render(title string, pages []export.Page) ([]byte, error) {
	r.title = title
	r.pages = pages
	return []byte("%PDF-1.3"), nil
}

type mediaFixture struct {
	svc       *MediaService
	repo      *fakeMediaRepo
	store     *memoryStore
	cache     *fakeMediaCache
	janitor   *recordingJanitor
	publisher *recordingPublisher
	renderer  *capturingRenderer
}

func newMediaFixture(t *testing.T) *mediaFixture {
	t.Helper()
	f := &mediaFixture{
		repo:      newFakeMediaRepo(),
		store:     newMemoryStore(),
		cache:     newFakeMediaCache(),
		janitor:   &recordingJanitor{},
		publisher: &recordingPublisher{},
		renderer:  &capturingRenderer{},
	}
	f.svc = NewMediaService(MediaServiceDeps{
		Repo:      f.repo,
		Uploader:  NewUploadOrchestrator(f.store, compressor.New(compressor.DefaultOptions()), 4, nil, nil),
		Objects:   f.store,
		Renderer:  f.renderer,
		Cache:     f.cache,
		Janitor:   f.janitor,
		Publisher: f.publisher,
	}, MediaServiceConfig{MaxFiles: 3, MaxFileBytes: 8 << 20})
	return f
}

func studioActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: models.AccountID(id), Role: models.RoleStudio, OrganizationName: "RD Studio"}
}

func requireAppError(t *testing.T, err error, expected *appErrors.Error) *appErrors.Error {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expected.Code, appErr.Code)
	assert.Equal(t, expected.Status, appErr.Status)
	return appErr
}

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(w * h)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func stringPtr(s string) *string { return &s }

func TestMediaServiceCreate(t *testing.T) {
	f := newMediaFixture(t)
	small := solidPNG(t, color.NRGBA{R: 255, A: 255})
	big := noisyPNG(t, 1200, 900)
	require.Greater(t, len(big), 400*1024)

	collection, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{
		MediaType:  "0",
		MediaTitle: stringPtr("  Wedding  "),
		EventDate:  stringPtr("2024-05-17"),
	}, []UploadFile{
		{Name: "front_a.png", ContentType: "image/png", Data: small},
		{Name: "middle_b.png", ContentType: "image/png", Data: big},
	}, studioActor("42"))
	require.NoError(t, err)

	assert.Len(t, collection.ExternalID, 20)
	assert.Equal(t, models.MediaKindImage, collection.Kind)
	assert.Equal(t, "Wedding", *collection.Title)
	assert.Equal(t, "RD Studio", *collection.StudioName)
	assert.Equal(t, "42", collection.OwnerID)
	assert.Equal(t, "2024-05-17", collection.EventDate.Format("2006-01-02"))
	assert.True(t, collection.IsActive)

	require.Len(t, collection.Items, 2)
	assert.Equal(t, "a.png", *collection.Items[0].Title)
	assert.Equal(t, models.PageRoleFront, collection.Items[0].PageRole)
	assert.Equal(t, "Uploaded file: b.png", *collection.Items[1].Description)
	assert.Equal(t, models.PageRoleMiddle, collection.Items[1].PageRole)
	assert.True(t, strings.HasPrefix(collection.Items[1].URL, "https://cdn.example.com/media_library/"+collection.ExternalID+"/"))
	assert.True(t, strings.HasSuffix(collection.Items[1].URL, ".jpg"))

	key, ok := f.store.KeyFromURL(collection.Items[1].URL)
	require.True(t, ok)
	stored, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(stored), 400*1024)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.MediaEventCreated, f.publisher.events[0].Type)
	assert.Equal(t, 2, f.publisher.events[0].ItemCount)
}

func TestMediaServiceCreateKeepsExplicitStudioName(t *testing.T) {
	f := newMediaFixture(t)
	collection, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{MediaType: "Flipbook", StudioName: stringPtr("Lab One")},
		[]UploadFile{{Name: "photo.jpg", Data: []byte{1, 2, 3}}}, studioActor("7"))
	require.NoError(t, err)
	assert.Equal(t, "Lab One", *collection.StudioName)
	assert.Equal(t, models.MediaKindFlipbook, collection.Kind)
	assert.Equal(t, models.PageRoleMiddle, collection.Items[0].PageRole)
}

func TestMediaServiceCreateValidation(t *testing.T) {
	file := []UploadFile{{Name: "a.jpg", Data: []byte{1}}}
	cases := map[string]struct {
		req   dto.CreateMediaRequest
		files []UploadFile
	}{
		"missing media type": {req: dto.CreateMediaRequest{}, files: file},
		"unknown media type": {req: dto.CreateMediaRequest{MediaType: "7"}, files: file},
		"no files":           {req: dto.CreateMediaRequest{MediaType: "0"}},
		"too many files":     {req: dto.CreateMediaRequest{MediaType: "0"}, files: append(append(append(file, file...), file...), file...)},
		"empty file":         {req: dto.CreateMediaRequest{MediaType: "0"}, files: []UploadFile{{Name: "a.jpg"}}},
		"bad event date":     {req: dto.CreateMediaRequest{MediaType: "0", EventDate: stringPtr("17/05/2024")}, files: file},
		"long title":         {req: dto.CreateMediaRequest{MediaType: "0", MediaTitle: stringPtr(strings.Repeat("x", 201))}, files: file},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newMediaFixture(t)
			_, err := f.svc.Create(context.Background(), tc.req, tc.files, studioActor("1"))
			requireAppError(t, err, appErrors.ErrValidation)
			assert.Zero(t, f.store.puts.Load())
			assert.Zero(t, f.repo.createCalls)
		})
	}
}

func TestMediaServiceCreateUploadFailureSkipsRepository(t *testing.T) {
	f := newMediaFixture(t)
	f.store.failOn = func(data []byte) error {
		if data[0] == 2 {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{MediaType: "0"}, []UploadFile{
		{Name: "front_a.jpg", Data: []byte{1}},
		{Name: "back_b.jpg", Data: []byte{2}},
	}, studioActor("1"))
	appErr := requireAppError(t, err, appErrors.ErrUpload)
	assert.Contains(t, appErr.Message, "back_b.jpg")
	assert.Zero(t, f.repo.createCalls)
	assert.Empty(t, f.publisher.events)
}

func TestMediaServiceCreateDuplicateExternalID(t *testing.T) {
	f := newMediaFixture(t)
	f.repo.createErr = fmt.Errorf("create media collection: %w", repository.ErrDuplicateExternalID)

	_, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{MediaType: "1"},
		[]UploadFile{{Name: "clip.mp4", Data: []byte{1}}}, studioActor("1"))
	requireAppError(t, err, appErrors.ErrConflict)
}

func createSample(t *testing.T, f *mediaFixture, owner string) *models.MediaCollection {
	t.Helper()
	collection, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{MediaType: "0", MediaTitle: stringPtr("Original")}, []UploadFile{
		{Name: "front_a.jpg", Data: []byte{1}},
		{Name: "back_b.jpg", Data: []byte{2}},
	}, studioActor(owner))
	require.NoError(t, err)
	return collection
}

func TestMediaServiceUpdateItemsSemantics(t *testing.T) {
	f := newMediaFixture(t)
	created := createSample(t, f, "1")
	actor := studioActor("1")

	untouched, err := f.svc.Update(context.Background(), created.ID, dto.UpdateMediaRequest{MediaTitle: stringPtr("Renamed")}, nil, actor)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", *untouched.Title)
	assert.Len(t, untouched.Items, 2)
	assert.Empty(t, f.janitor.urls)

	cleared, err := f.svc.Update(context.Background(), created.ID, dto.UpdateMediaRequest{}, &[]UploadFile{}, actor)
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
	assert.True(t, cleared.IsActive)
	assert.Equal(t, "Renamed", *cleared.Title)
	assert.ElementsMatch(t, []string{created.Items[0].URL, created.Items[1].URL}, f.janitor.urls)
	assert.Contains(t, f.cache.deleted, publicMediaCachePrefix+created.ExternalID)

	require.Len(t, f.publisher.events, 3)
	assert.Equal(t, models.MediaEventUpdated, f.publisher.events[2].Type)
}

func TestMediaServiceUpdateReplacesItemsUnderSameExternalID(t *testing.T) {
	f := newMediaFixture(t)
	created := createSample(t, f, "1")

	updated, err := f.svc.Update(context.Background(), created.ID, dto.UpdateMediaRequest{}, &[]UploadFile{
		{Name: "2_closing.jpg", Data: []byte{9}},
	}, studioActor("1"))
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "closing.jpg", *updated.Items[0].Title)
	assert.Equal(t, models.PageRoleBack, updated.Items[0].PageRole)
	assert.True(t, strings.Contains(updated.Items[0].URL, "/media_library/"+created.ExternalID+"/"))
	assert.Equal(t, created.ExternalID, updated.ExternalID)
	assert.Equal(t, created.Kind, updated.Kind)
}

func TestMediaServiceOwnershipScoping(t *testing.T) {
	f := newMediaFixture(t)
	created := createSample(t, f, "1")
	stranger := studioActor("2")

	_, err := f.svc.Get(context.Background(), created.ID, stranger)
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Update(context.Background(), created.ID, dto.UpdateMediaRequest{}, nil, stranger)
	requireAppError(t, err, appErrors.ErrNotFound)

	err = f.svc.SoftDelete(context.Background(), created.ID, stranger)
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Get(context.Background(), created.ID, nil)
	requireAppError(t, err, appErrors.ErrUnauthorized)
}

func TestMediaServiceSoftDeleteHidesPublicRecord(t *testing.T) {
	f := newMediaFixture(t)
	created := createSample(t, f, "1")

	public, err := f.svc.GetByExternalID(context.Background(), created.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, public.ID)
	assert.Contains(t, f.cache.entries, publicMediaCachePrefix+created.ExternalID)

	require.NoError(t, f.svc.SoftDelete(context.Background(), created.ID, studioActor("1")))
	assert.NotContains(t, f.cache.entries, publicMediaCachePrefix+created.ExternalID)

	_, err = f.svc.GetByExternalID(context.Background(), created.ExternalID)
	requireAppError(t, err, appErrors.ErrNotFound)

	err = f.svc.SoftDelete(context.Background(), created.ID, studioActor("1"))
	requireAppError(t, err, appErrors.ErrNotFound)

	assert.Equal(t, models.MediaEventDeleted, f.publisher.events[len(f.publisher.events)-1].Type)
}

func TestMediaServicePublicLookupServedFromCache(t *testing.T) {
	f := newMediaFixture(t)
	created := createSample(t, f, "1")

	_, err := f.svc.GetByExternalID(context.Background(), created.ExternalID)
	require.NoError(t, err)

	// a cached record survives a repository change until invalidated
	f.repo.collections[created.ID].Title = stringPtr("changed directly")
	cached, err := f.svc.GetByExternalID(context.Background(), created.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, "Original", *cached.Title)

	_, err = f.svc.GetByExternalID(context.Background(), "  ")
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestMediaServiceSetFavorite(t *testing.T) {
	f := newMediaFixture(t)
	created := createSample(t, f, "1")

	updated, err := f.svc.SetFavorite(context.Background(), created.ID, true, studioActor("1"))
	require.NoError(t, err)
	assert.True(t, updated.IsFavorite)

	favorite := true
	list, page, err := f.svc.List(context.Background(), dto.MediaListQuery{Favorite: &favorite}, studioActor("1"))
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, page.TotalCount)
}

func TestMediaServiceListPagination(t *testing.T) {
	f := newMediaFixture(t)
	for i := 0; i < 3; i++ {
		createSample(t, f, "1")
	}
	createSample(t, f, "2")

	list, page, err := f.svc.List(context.Background(), dto.MediaListQuery{Page: 2, PageSize: 2}, studioActor("1"))
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 2, TotalCount: 3}, page)

	_, page, err = f.svc.List(context.Background(), dto.MediaListQuery{PageSize: 1000}, studioActor("1"))
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.Page)

	_, _, err = f.svc.List(context.Background(), dto.MediaListQuery{MediaType: stringPtr("audio")}, studioActor("1"))
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestMediaServiceExportFlipbookOrdersPages(t *testing.T) {
	f := newMediaFixture(t)
	red := solidPNG(t, color.NRGBA{R: 255, A: 255})
	green := solidPNG(t, color.NRGBA{G: 255, A: 255})
	blue := solidPNG(t, color.NRGBA{B: 255, A: 255})

	created, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{MediaType: "2", MediaTitle: stringPtr("Album")}, []UploadFile{
		{Name: "back_end.png", Data: blue},
		{Name: "middle_notes.txt", Data: []byte("plain text page")},
		{Name: "middle_inner.png", Data: green},
		{Name: "front_cover.png", Data: red},
	}, studioActor("1"))
	require.NoError(t, err)

	pdf, name, err := f.svc.ExportFlipbook(context.Background(), created.ID, studioActor("1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3"), pdf)
	assert.Equal(t, created.ExternalID+".pdf", name)
	assert.Equal(t, "Album", f.renderer.title)

	require.Len(t, f.renderer.pages, 3)
	assert.Equal(t, red, f.renderer.pages[0].Data)
	assert.Equal(t, green, f.renderer.pages[1].Data)
	assert.Equal(t, blue, f.renderer.pages[2].Data)
	assert.Equal(t, "image/png", f.renderer.pages[0].ContentType)
}

func TestMediaServiceExportFlipbookWithoutImages(t *testing.T) {
	f := newMediaFixture(t)
	created, err := f.svc.Create(context.Background(), dto.CreateMediaRequest{MediaType: "2"}, []UploadFile{
		{Name: "notes.txt", Data: []byte("hello")},
	}, studioActor("1"))
	require.NoError(t, err)

	_, _, err = f.svc.ExportFlipbook(context.Background(), created.ID, studioActor("1"))
	requireAppError(t, err, appErrors.ErrValidation)
}
