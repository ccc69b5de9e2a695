package models

import "time"

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ShortLinkResponse adds the public redirect URL to a short link.
type ShortLinkResponse struct {
	ShortLink
	ShortURL string `json:"shortUrl"`
}

// DigitalLinkResponse adds the public resolution URL to a digital link.
type DigitalLinkResponse struct {
	DigitalLink
	URL string `json:"url,omitempty"`
}

// CreateDigitalLinkRequest is the body of POST /api/digitallinks. A linkType
// of "gs1" (or empty) describes a GS1 link; any special kind describes a
// special link pointing at targetUrl.
type CreateDigitalLinkRequest struct {
	LinkType     string     `json:"linkType"`
	GS1Key       string     `json:"gs1Key"`
	GS1KeyType   string     `json:"gs1KeyType"`
	RedirectType string     `json:"redirectType"`
	CustomURL    string     `json:"customUrl"`
	ProductID    string     `json:"productId"`
	TargetURL    string     `json:"targetUrl"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	CategoryID   *string    `json:"categoryId"`
}

// CreateFolderRequest is the body of POST /api/folders.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

// UpdateFolderRequest renames and/or moves a folder. moveToRoot moves the
// folder to the top level.
type UpdateFolderRequest struct {
	Name       *string `json:"name"`
	ParentID   *string `json:"parentId"`
	MoveToRoot bool    `json:"moveToRoot"`
}

// UpdateMediaRequest edits media metadata and/or moves the item.
type UpdateMediaRequest struct {
	MediaPatch
	FolderID   *string `json:"folderId"`
	MoveToRoot bool    `json:"moveToRoot"`
}

// ActivityResponse lists the most recent link activity of a company.
type ActivityResponse struct {
	Activities []LinkActivity `json:"activities"`
}
