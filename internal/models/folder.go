// Package models defines the entities shared by the services, the
// persistence implementations and the HTTP adapter.
package models

import (
	"strings"
	"time"
)

// PathSeparator separates folder names inside a materialized path.
const PathSeparator = "/"

// Folder is a node of a company's media namespace.
type Folder struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChildPath returns the materialized path of a folder called name placed
// under parentPath. An empty parentPath means the company root.
func ChildPath(parentPath, name string) string {
	return strings.TrimSuffix(parentPath, PathSeparator) + PathSeparator + name
}

// FolderFilter narrows ListFolders. RootOnly selects folders without a parent
// and wins over ParentID.
type FolderFilter struct {
	CompanyID string
	ParentID  *string
	RootOnly  bool
	Search    string
}

// NodeType distinguishes folders from files in a tree.
type NodeType string

const (
	NodeFolder NodeType = "folder"
	NodeFile   NodeType = "file"
)

// TreeNode is one entry of the combined folder and media tree.
type TreeNode struct {
	Type     NodeType    `json:"type"`
	Folder   *Folder     `json:"folder,omitempty"`
	Media    *Media      `json:"media,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// ID returns the id of the folder or media item the node wraps.
func (n *TreeNode) ID() string {
	if n.Folder != nil {
		return n.Folder.ID
	}
	if n.Media != nil {
		return n.Media.ID
	}
	return ""
}
