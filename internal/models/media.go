package models

import (
	"strings"
	"time"
)

// MediaType is the coarse classification of an uploaded object.
type MediaType string

const (
	MediaImage    MediaType = "IMAGE"
	MediaVideo    MediaType = "VIDEO"
	MediaDocument MediaType = "DOCUMENT"
	MediaOther    MediaType = "OTHER"
)

// DefaultSection is used when an upload carries no section tag.
const DefaultSection = "general"

// ClassifyMIME maps a MIME type onto a MediaType.
func ClassifyMIME(mime string) MediaType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case mime == "application/pdf",
		strings.Contains(mime, "word"),
		strings.Contains(mime, "excel"):
		return MediaDocument
	default:
		return MediaOther
	}
}

// BlobRef describes an object held by the binary store.
type BlobRef struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Media is an uploaded binary object filed under a company and optionally a
// folder. Path is a copy of the folder's path at the time of the last write.
type Media struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"companyId"`
	FolderID    *string   `json:"folderId"`
	Path        *string   `json:"path"`
	Type        MediaType `json:"type"`
	Section     string    `json:"section"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Alt         string    `json:"alt,omitempty"`
	Width       *int      `json:"width,omitempty"`
	Height      *int      `json:"height,omitempty"`
	BlobRef
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MediaMetadata is the descriptive part of an upload.
type MediaMetadata struct {
	CompanyID   string
	FolderID    *string
	Section     string
	Title       string
	Description string
	Alt         string
	Width       *int
	Height      *int
}

// MediaPatch carries descriptive updates; nil fields are left untouched.
type MediaPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Alt         *string `json:"alt"`
	Section     *string `json:"section"`
}

// MediaFilter narrows MediaStore.List. RootOnly selects unfiled media and
// wins over FolderID.
type MediaFilter struct {
	CompanyID string
	Type      MediaType
	Section   string
	FolderID  *string
	RootOnly  bool
	Search    string
	Page      int
	Limit     int
}

// MediaPage is one page of media with its pagination metadata.
type MediaPage struct {
	Media      []Media    `json:"media"`
	Pagination Pagination `json:"pagination"`
}
