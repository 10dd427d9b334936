package models

import "time"

// ChatAttachmentType tags catalog entries that arrived as chat attachments
const ChatAttachmentType = "chat-attachment"

// FileRecord is a catalog entry for an uploaded file
type FileRecord struct {
	ID           string    `json:"id" db:"id" bson:"_id"`
	StorageKey   string    `json:"storageKey" db:"storage_key" bson:"storage_key"`
	OriginalName string    `json:"originalName" db:"original_name" bson:"original_name"`
	FileType     string    `json:"fileType" db:"file_type" bson:"file_type"`
	Description  string    `json:"description" db:"description" bson:"description"`
	Course       string    `json:"course,omitempty" db:"course" bson:"course,omitempty"`
	Semester     string    `json:"semester,omitempty" db:"semester" bson:"semester,omitempty"`
	ContentType  string    `json:"contentType" db:"content_type" bson:"content_type"`
	Size         int64     `json:"size" db:"size" bson:"size"`
	UploadedBy   string    `json:"uploadedBy" db:"uploaded_by" bson:"uploaded_by"`
	UploadedAt   time.Time `json:"uploadedAt" db:"uploaded_at" bson:"uploaded_at"`
}

// FileFilter narrows catalog listings. Empty fields match everything.
type FileFilter struct {
	Course   string
	FileType string
	Semester string
}

// Matches reports whether rec passes the filter.
func (f FileFilter) Matches(rec *FileRecord) bool {
	if f.Course != "" && rec.Course != f.Course {
		return false
	}
	if f.FileType != "" && rec.FileType != f.FileType {
		return false
	}
	if f.Semester != "" && rec.Semester != f.Semester {
		return false
	}
	return true
}
