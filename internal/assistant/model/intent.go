package model

import "strings"

// Tool names the workflow intent selected by the router. The set is closed:
// the orchestrator dispatches with an exhaustive switch, and an unrecognized
// value is a contract violation rather than a runtime case.
type Tool string

const (
	ToolFillTemplate   Tool = "FillTemplate"
	ToolCreateDocument Tool = "CreateDocument"
	ToolReadDocument   Tool = "ReadDocument"
	ToolGeneralChat    Tool = "GeneralChat"
)

// FileType is the target format for a created document.
type FileType string

const (
	FileTypeDocx FileType = "docx"
	FileTypeXlsx FileType = "xlsx"
	FileTypePdf  FileType = "pdf"
)

// NormalizeFileType maps a raw router argument to a supported format,
// defaulting to docx for anything unrecognized.
func NormalizeFileType(v string) FileType {
	switch FileType(strings.ToLower(strings.TrimSpace(v))) {
	case FileTypeXlsx:
		return FileTypeXlsx
	case FileTypePdf:
		return FileTypePdf
	default:
		return FileTypeDocx
	}
}

// FillTemplateArgs routes to filling an existing named DOCX template.
type FillTemplateArgs struct {
	TemplateName string `json:"template_name"`
	Topic        string `json:"topic"`
}

// CreateDocumentArgs routes to creating a new document from scratch.
type CreateDocumentArgs struct {
	Topic    string `json:"topic"`
	FileType string `json:"file_type"`
}

// ReadDocumentArgs routes to answering a question about an attached document.
type ReadDocumentArgs struct {
	Question string `json:"question"`
}

// GeneralChatArgs routes to the conversational fallback.
type GeneralChatArgs struct {
	UserRequest string `json:"user_request"`
}

// RoutedCall is the router's output: exactly one intent from the closed set,
// with the matching args pointer populated. It is always set before any flow
// node runs.
type RoutedCall struct {
	Tool Tool

	FillTemplate   *FillTemplateArgs
	CreateDocument *CreateDocumentArgs
	ReadDocument   *ReadDocumentArgs
	GeneralChat    *GeneralChatArgs
}

// GeneralChatCall is the unconditional router fallback for a prompt.
func GeneralChatCall(prompt string) *RoutedCall {
	return &RoutedCall{
		Tool:        ToolGeneralChat,
		GeneralChat: &GeneralChatArgs{UserRequest: prompt},
	}
}
