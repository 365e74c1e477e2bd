package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaKind classifies a media collection.
type MediaKind int

const (
	MediaKindImage MediaKind = iota
	MediaKindVideo
	MediaKindFlipbook
)

var mediaKindNames = map[MediaKind]string{
	MediaKindImage:    "Image",
	MediaKindVideo:    "Video",
	MediaKindFlipbook: "Flipbook",
}

// Valid reports whether k is a known kind.
func (k MediaKind) Valid() bool {
	_, ok := mediaKindNames[k]
	return ok
}

func (k MediaKind) String() string {
	if name, ok := mediaKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseMediaKind accepts the numeric code or the kind name.
func ParseMediaKind(raw string) (MediaKind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("media_type is required")
	}
	if code, err := strconv.Atoi(raw); err == nil {
		k := MediaKind(code)
		if !k.Valid() {
			return 0, fmt.Errorf("invalid media_type %d", code)
		}
		return k, nil
	}
	for k, name := range mediaKindNames {
		if strings.EqualFold(name, raw) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid media_type %q", raw)
}

// PageRole positions an item inside a flipbook.
type PageRole int

const (
	PageRoleFront PageRole = iota
	PageRoleMiddle
	PageRoleBack
)

func (p PageRole) String() string {
	switch p {
	case PageRoleFront:
		return "Front"
	case PageRoleMiddle:
		return "Middle"
	case PageRoleBack:
		return "Back"
	default:
		return "Unknown"
	}
}

// ParsePageRole resolves a file-name prefix such as "front" or "0".
func ParsePageRole(token string) (PageRole, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "front", "0":
		return PageRoleFront, true
	case "middle", "1":
		return PageRoleMiddle, true
	case "back", "2":
		return PageRoleBack, true
	default:
		return PageRoleMiddle, false
	}
}

// MediaCollection is one upload session, e.g. the photos of one event.
type MediaCollection struct {
	ID                  int64       `db:"id" json:"id"`
	ExternalID          string      `db:"media_unique_id" json:"media_unique_id"`
	Kind                MediaKind   `db:"media_type" json:"media_type"`
	Title               *string     `db:"media_title" json:"media_title,omitempty"`
	Description         *string     `db:"media_description" json:"media_description,omitempty"`
	StudioName          *string     `db:"studio_name" json:"studio_name,omitempty"`
	EventDate           *time.Time  `db:"event_date" json:"event_date,omitempty"`
	InstagramProfileURL *string     `db:"instagram_profile_url" json:"instagram_profile_url,omitempty"`
	WhatsappNumber      *string     `db:"whatsapp_number" json:"whatsapp_number,omitempty"`
	IsFavorite          bool        `db:"is_favorite" json:"is_favorite"`
	OwnerID             string      `db:"created_by" json:"created_by"`
	IsActive            bool        `db:"is_active" json:"is_active"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
	Items               []MediaItem `db:"-" json:"media_library_items"`
}

// MediaItem is one stored asset of a collection. Items are only ever created
// together with their collection or as a wholesale replacement.
type MediaItem struct {
	ID           int64     `db:"id" json:"id"`
	CollectionID int64     `db:"media_library_id" json:"-"`
	Position     int       `db:"position" json:"position"`
	URL          string    `db:"media_url" json:"media_url"`
	Title        *string   `db:"media_item_title" json:"media_item_title,omitempty"`
	Description  *string   `db:"media_item_description" json:"media_item_description,omitempty"`
	PageRole     PageRole  `db:"page_type" json:"page_type"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MediaFilter narrows collection lookups. Zero values are ignored.
type MediaFilter struct {
	ID         int64
	OwnerID    string
	ExternalID string
	ActiveOnly bool
	Favorite   *bool
	Kind       *MediaKind
	Limit      int
	Offset     int
}

// Media event types published after successful writes.
const (
	MediaEventCreated = "media.created"
	MediaEventUpdated = "media.updated"
	MediaEventDeleted = "media.deleted"
)

// MediaEvent describes a committed change to a collection.
type MediaEvent struct {
	Type         string    `json:"type"`
	CollectionID int64     `json:"collection_id"`
	ExternalID   string    `json:"media_unique_id"`
	OwnerID      string    `json:"owner_id"`
	Kind         MediaKind `json:"media_type"`
	ItemCount    int       `json:"item_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}
