package models

import "time"

// Document is the metadata row backing a stored file. Versions of the
// same logical document share a lineage id; the newest version carries
// latest = TRUE.
type Document struct {
	ID               string       `db:"id" json:"id"`
	LineageID        string       `db:"lineage_id" json:"lineage_id"`
	TrackingID       string       `db:"tracking_id" json:"tracking_id"`
	Stage            Stage        `db:"stage" json:"stage"`
	DocumentType     DocumentType `db:"document_type" json:"document_type"`
	OriginalFilename string       `db:"original_filename" json:"original_filename"`
	StoragePath      string       `db:"storage_path" json:"-"`
	MimeType         string       `db:"mime_type" json:"mime_type"`
	FileSize         int64        `db:"file_size" json:"file_size"`
	VersionNumber    int          `db:"version_number" json:"version_number"`
	Latest           bool         `db:"latest" json:"latest"`
	UploadedBy       string       `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt       time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// Ref converts the stored row into the embedded stage attachment shape.
func (d *Document) Ref() DocumentRef {
	return DocumentRef{
		ID:               d.ID,
		OriginalFilename: d.OriginalFilename,
		DocumentType:     d.DocumentType,
		FileSize:         d.FileSize,
		UploadedBy:       d.UploadedBy,
		UploadedAt:       d.UploadedAt,
		VersionNumber:    d.VersionNumber,
	}
}
