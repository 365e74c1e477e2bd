package dto

import (
	"time"

	"github.com/noah-isme/rd-studio-media-api/internal/models"
)

const eventDateLayout = "2006-01-02"

// CreateMediaRequest carries the form fields of a multipart create request.
type CreateMediaRequest struct {
	MediaType           string  `form:"media_type" validate:"required"`
	MediaTitle          *string `form:"media_title" validate:"omitempty,max=200"`
	MediaDescription    *string `form:"media_description"`
	StudioName          *string `form:"studio_name" validate:"omitempty,max=100"`
	EventDate           *string `form:"event_date" validate:"omitempty,datetime=2006-01-02"`
	InstagramProfileURL *string `form:"instagram_profile_url" validate:"omitempty,url,max=500"`
	WhatsappNumber      *string `form:"whatsapp_number" validate:"omitempty,max=32"`
}

// UpdateMediaRequest carries optional metadata changes. Nil fields are left
// untouched; an empty string clears the stored value.
type UpdateMediaRequest struct {
	MediaTitle          *string `form:"media_title" validate:"omitempty,max=200"`
	MediaDescription    *string `form:"media_description"`
	StudioName          *string `form:"studio_name" validate:"omitempty,max=100"`
	EventDate           *string `form:"event_date" validate:"omitempty,datetime=2006-01-02"`
	InstagramProfileURL *string `form:"instagram_profile_url" validate:"omitempty,url,max=500"`
	WhatsappNumber      *string `form:"whatsapp_number" validate:"omitempty,max=32"`
	IsFavorite          *bool   `form:"is_favorite"`
	ClearItems          bool    `form:"clear_items"`
}

// SetFavoriteRequest toggles the favorite flag.
type SetFavoriteRequest struct {
	IsFavorite *bool `json:"is_favorite" validate:"required"`
}

// MediaListQuery holds list filters and pagination.
type MediaListQuery struct {
	Page      int     `form:"page"`
	PageSize  int     `form:"page_size"`
	Favorite  *bool   `form:"favorite"`
	MediaType *string `form:"media_type"`
}

// MediaItemResponse is the API view of a media item.
type MediaItemResponse struct {
	ID                   int64     `json:"id"`
	Position             int       `json:"position"`
	MediaURL             string    `json:"media_url"`
	MediaItemTitle       *string   `json:"media_item_title,omitempty"`
	MediaItemDescription *string   `json:"media_item_description,omitempty"`
	PageType             int       `json:"page_type"`
	PageTypeName         string    `json:"page_type_name"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// MediaCollectionResponse is the API view of a media collection.
type MediaCollectionResponse struct {
	ID                  int64               `json:"id"`
	MediaUniqueID       string              `json:"media_unique_id"`
	MediaType           int                 `json:"media_type"`
	MediaTypeName       string              `json:"media_type_name"`
	MediaTitle          *string             `json:"media_title,omitempty"`
	MediaDescription    *string             `json:"media_description,omitempty"`
	StudioName          *string             `json:"studio_name,omitempty"`
	EventDate           *string             `json:"event_date,omitempty"`
	InstagramProfileURL *string             `json:"instagram_profile_url,omitempty"`
	WhatsappNumber      *string             `json:"whatsapp_number,omitempty"`
	IsFavorite          bool                `json:"is_favorite"`
	CreatedBy           string              `json:"created_by,omitempty"`
	IsActive            bool                `json:"is_active"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	MediaLibraryItems   []MediaItemResponse `json:"media_library_items"`
}

// NewMediaCollectionResponse maps a collection for its owner.
func NewMediaCollectionResponse(c *models.MediaCollection) MediaCollectionResponse {
	resp := MediaCollectionResponse{
		ID:                  c.ID,
		MediaUniqueID:       c.ExternalID,
		MediaType:           int(c.Kind),
		MediaTypeName:       c.Kind.String(),
		MediaTitle:          c.Title,
		MediaDescription:    c.Description,
		StudioName:          c.StudioName,
		InstagramProfileURL: c.InstagramProfileURL,
		WhatsappNumber:      c.WhatsappNumber,
		IsFavorite:          c.IsFavorite,
		CreatedBy:           c.OwnerID,
		IsActive:            c.IsActive,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
		MediaLibraryItems:   make([]MediaItemResponse, 0, len(c.Items)),
	}
	if c.EventDate != nil {
		date := c.EventDate.Format(eventDateLayout)
		resp.EventDate = &date
	}
	for _, item := range c.Items {
		resp.MediaLibraryItems = append(resp.MediaLibraryItems, MediaItemResponse{
			ID:                   item.ID,
			Position:             item.Position,
			MediaURL:             item.URL,
			MediaItemTitle:       item.Title,
			MediaItemDescription: item.Description,
			PageType:             int(item.PageRole),
			PageTypeName:         item.PageRole.String(),
			CreatedAt:            item.CreatedAt,
			UpdatedAt:            item.UpdatedAt,
		})
	}
	return resp
}

// NewPublicMediaResponse maps a collection for unauthenticated readers.
func NewPublicMediaResponse(c *models.MediaCollection) MediaCollectionResponse {
	resp := NewMediaCollectionResponse(c)
	resp.CreatedBy = ""
	return resp
}

// NewMediaCollectionList maps a page of collections.
func NewMediaCollectionList(items []models.MediaCollection) []MediaCollectionResponse {
	out := make([]MediaCollectionResponse, 0, len(items))
	for i := range items {
		out = append(out, NewMediaCollectionResponse(&items[i]))
	}
	return out
}
