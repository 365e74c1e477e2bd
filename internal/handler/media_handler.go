package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rd-studio-media-api/internal/dto"
	"github.com/noah-isme/rd-studio-media-api/internal/models"
	"github.com/noah-isme/rd-studio-media-api/internal/service"
	appErrors "github.com/noah-isme/rd-studio-media-api/pkg/errors"
	"github.com/noah-isme/rd-studio-media-api/pkg/response"
)

const (
	mediaFilesField        = "media_items"
	defaultMaxRequestBytes = 1 << 30
	multipartMemoryBytes   = 32 << 20
)

type mediaService interface {
	Create(ctx context.Context, req dto.CreateMediaRequest, files []service.UploadFile, actor *models.JWTClaims) (*models.MediaCollection, error)
	Update(ctx context.Context, id int64, req dto.UpdateMediaRequest, files *[]service.UploadFile, actor *models.JWTClaims) (*models.MediaCollection, error)
	SetFavorite(ctx context.Context, id int64, favorite bool, actor *models.JWTClaims) (*models.MediaCollection, error)
	SoftDelete(ctx context.Context, id int64, actor *models.JWTClaims) error
	Get(ctx context.Context, id int64, actor *models.JWTClaims) (*models.MediaCollection, error)
	List(ctx context.Context, query dto.MediaListQuery, actor *models.JWTClaims) ([]models.MediaCollection, *models.Pagination, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.MediaCollection, error)
	ExportFlipbook(ctx context.Context, id int64, actor *models.JWTClaims) ([]byte, string, error)
}

// MediaHandlerConfig bounds request sizes and public caching.
type MediaHandlerConfig struct {
	MaxRequestBytes int64
	PublicMaxAge    int
}

// MediaHandler exposes media library endpoints.
type MediaHandler struct {
	service mediaService
	cfg     MediaHandlerConfig
}

// NewMediaHandler builds a new handler.
func NewMediaHandler(service mediaService, cfg MediaHandlerConfig) *MediaHandler {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	if cfg.PublicMaxAge < 0 {
		cfg.PublicMaxAge = 0
	}
	return &MediaHandler{service: service, cfg: cfg}
}

// Create godoc
// @Summary Upload a media collection
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param media_type formData string true "Media kind (0=Image, 1=Video, 2=Flipbook)"
// @Param media_title formData string false "Title"
// @Param media_description formData string false "Description"
// @Param studio_name formData string false "Studio name (defaults to organization)"
// @Param event_date formData string false "Event date (YYYY-MM-DD)"
// @Param instagram_profile_url formData string false "Instagram profile URL"
// @Param whatsapp_number formData string false "WhatsApp number"
// @Param media_items formData file true "Files named <role>_<name>"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /media [post]
func (h *MediaHandler) Create(c *gin.Context) {
	h.limitBody(c)
	files, err := h.readFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid form payload"))
		return
	}
	collection, err := h.service.Create(c.Request.Context(), req, files, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewMediaCollectionResponse(collection))
}

// List godoc
// @Summary List own media collections
// @Tags Media
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Param favorite query bool false "Only favorites"
// @Param media_type query string false "Media kind filter"
// @Success 200 {object} response.Envelope
// @Router /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	var query dto.MediaListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	collections, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMediaCollectionList(collections), pagination)
}

// Get godoc
// @Summary Get an own media collection
// @Tags Media
// @Produce json
// @Param id path int true "Collection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	id, err := mediaID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	collection, err := h.service.Get(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMediaCollectionResponse(collection), nil)
}

// Update godoc
// @Summary Update a media collection
// @Description Uploaded media_items replace every item; clear_items=true without files removes them all.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Collection ID"
// @Param media_title formData string false "Title"
// @Param media_description formData string false "Description"
// @Param studio_name formData string false "Studio name"
// @Param event_date formData string false "Event date (YYYY-MM-DD)"
// @Param is_favorite formData bool false "Favorite flag"
// @Param clear_items formData bool false "Remove all items"
// @Param media_items formData file false "Replacement files"
// @Success 200 {object} response.Envelope
// @Router /media/{id} [put]
func (h *MediaHandler) Update(c *gin.Context) {
	id, err := mediaID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.limitBody(c)
	files, err := h.readFiles(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid form payload"))
		return
	}

	var replacement *[]service.UploadFile
	switch {
	case len(files) > 0:
		replacement = &files
	case req.ClearItems:
		replacement = &[]service.UploadFile{}
	}

	collection, err := h.service.Update(c.Request.Context(), id, req, replacement, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMediaCollectionResponse(collection), nil)
}

// SetFavorite godoc
// @Summary Mark or unmark a collection as favorite
// @Tags Media
// @Accept json
// @Produce json
// @Param id path int true "Collection ID"
// @Param payload body dto.SetFavoriteRequest true "Favorite flag"
// @Success 200 {object} response.Envelope
// @Router /media/{id}/favorite [patch]
func (h *MediaHandler) SetFavorite(c *gin.Context) {
	id, err := mediaID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SetFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsFavorite == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_favorite is required"))
		return
	}
	collection, err := h.service.SetFavorite(c.Request.Context(), id, *req.IsFavorite, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewMediaCollectionResponse(collection), nil)
}

// Delete godoc
// @Summary Soft delete a media collection
// @Tags Media
// @Param id path int true "Collection ID"
// @Success 204
// @Router /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	id, err := mediaID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.SoftDelete(c.Request.Context(), id, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Flipbook godoc
// @Summary Export a collection as a PDF flipbook
// @Tags Media
// @Produce application/pdf
// @Param id path int true "Collection ID"
// @Success 200 {file} binary
// @Router /media/{id}/flipbook.pdf [get]
func (h *MediaHandler) Flipbook(c *gin.Context) {
	id, err := mediaID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	pdf, filename, err := h.service.ExportFlipbook(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Binary(c, "application/pdf", filename, pdf)
}

// GetPublic godoc
// @Summary Public lookup by external id
// @Tags Media
// @Produce json
// @Param externalId path string true "External media id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /media/external/{externalId} [get]
func (h *MediaHandler) GetPublic(c *gin.Context) {
	collection, err := h.service.GetByExternalID(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Public(c, dto.NewPublicMediaResponse(collection), h.cfg.PublicMaxAge)
}

func (h *MediaHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxRequestBytes)
}

// readFiles parses the multipart body and loads every media_items part.
// A request that is not multipart carries no files.
func (h *MediaHandler) readFiles(c *gin.Context) ([]service.UploadFile, error) {
	if err := c.Request.ParseMultipartForm(multipartMemoryBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit))
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid multipart payload")
	}
	headers := c.Request.MultipartForm.File[mediaFilesField]
	files := make([]service.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUpload(header)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unable to read file %q", header.Filename))
		}
		files = append(files, file)
	}
	return files, nil
}

func readUpload(header *multipart.FileHeader) (service.UploadFile, error) {
	src, err := header.Open()
	if err != nil {
		return service.UploadFile{}, err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return service.UploadFile{}, err
	}
	return service.UploadFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func mediaID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid media id")
	}
	return id, nil
}
