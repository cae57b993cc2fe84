package dto

import "github.com/davmuu/curriculum-tracking-api/internal/models"

// UploadDocumentVersionRequest carries the multipart metadata for
// uploading a new version of an existing document.
type UploadDocumentVersionRequest struct {
	Notes string `form:"notes"`
}

// DocumentResponse is the stored metadata returned after an upload.
type DocumentResponse struct {
	models.Document
}

// DocumentDownloadResponse enriches metadata with a signed download URL.
type DocumentDownloadResponse struct {
	models.Document
	DownloadURL string `json:"downloadUrl"`
}

// DocumentVersionsResponse lists the full version chain of one
// logical document, newest first.
type DocumentVersionsResponse struct {
	LineageID string            `json:"lineageId"`
	Versions  []models.Document `json:"versions"`
}
