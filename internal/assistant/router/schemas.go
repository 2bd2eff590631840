package router

import (
	"github.com/cloudwego/eino/schema"

	"github.com/docsmith-core/server/internal/assistant/model"
)

// IntentTools returns the four tool schemas the router asks the LLM to choose
// between. One schema per workflow intent; the closed set mirrors model.Tool.
func IntentTools() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: string(model.ToolFillTemplate),
			Desc: "Route to filling an existing DOCX template registered in the system.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"template_name": {
					Type:     "string",
					Desc:     "The template file name, e.g. 'proposal.docx'.",
					Required: true,
				},
				"topic": {
					Type:     "string",
					Desc:     "The main topic or subject of the document to fill.",
					Required: true,
				},
			}),
		},
		{
			Name: string(model.ToolCreateDocument),
			Desc: "Route to creating a brand new document from scratch.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"topic": {
					Type:     "string",
					Desc:     "The topic or main content of the document to create.",
					Required: true,
				},
				"file_type": {
					Type: "string",
					Desc: "The file type to create. Use 'xlsx' for spreadsheets or tables, 'docx' for reports or text, 'pdf' for formal documents.",
					Enum: []string{"docx", "xlsx", "pdf"},
				},
			}),
		},
		{
			Name: string(model.ToolReadDocument),
			Desc: "Route to reading and analyzing a document the user attached to this request.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"question": {
					Type:     "string",
					Desc:     "The specific question the user has about the document's contents.",
					Required: true,
				},
			}),
		},
		{
			Name: string(model.ToolGeneralChat),
			Desc: "Route to general conversation for any request that does not fit the other tools.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_request": {
					Type:     "string",
					Desc:     "The user's original request or question.",
					Required: true,
				},
			}),
		},
	}
}
