package model

import "context"

// StoredFile is the metadata of a stored document blob.
type StoredFile struct {
	FileRef  string `json:"file_ref"`
	Filename string `json:"filename"`
	OwnerID  string `json:"owner_id,omitempty"`
}

// DocumentStore persists generated and uploaded document bytes. Filenames are
// independent of the content-addressed FileRef.
type DocumentStore interface {
	Put(ctx context.Context, content []byte, filename, ownerID string) (*StoredFile, error)
	Get(ctx context.Context, fileRef string) ([]byte, *StoredFile, error)
	Delete(ctx context.Context, fileRef string) error
}

// TemplateInfo describes one registered template.
type TemplateInfo struct {
	Filename string `json:"filename"`
	FileRef  string `json:"file_ref"`
}

// TemplateRegistry resolves template names to stored template files. A missing
// template is a normal outcome: Find reports it with an errx code of
// TEMPLATE_NOT_FOUND, distinguishable from a storage failure.
type TemplateRegistry interface {
	List(ctx context.Context) ([]string, error)
	Find(ctx context.Context, filename string) (*TemplateInfo, error)
	Fetch(ctx context.Context, filename string) ([]byte, *TemplateInfo, error)
}

// ContentType classifies the structural shape of extracted file content,
// which drives the prompt framing in the read-document flow.
type ContentType string

const (
	ContentTypeDocx  ContentType = "docx"
	ContentTypeExcel ContentType = "excel"
	ContentTypePdf   ContentType = "pdf"
	ContentTypeText  ContentType = "text/plain"
	ContentTypeCSV   ContentType = "text/csv"
	ContentTypeJSON  ContentType = "application/json"
)

// IsTabular reports whether the content reads as rows and columns.
func (c ContentType) IsTabular() bool {
	return c == ContentTypeExcel || c == ContentTypeCSV
}

// IsStructured reports whether the content reads as keyed/nested data.
func (c ContentType) IsStructured() bool {
	return c == ContentTypeJSON
}

// FileContent is the result of reading an attached document.
type FileContent struct {
	Content     string
	ContentType ContentType
	Filename    string
}

// FileReader extracts text from a stored document for question answering.
type FileReader interface {
	Read(ctx context.Context, fileRef string) (*FileContent, error)
}
