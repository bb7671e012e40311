package models

import (
	huma "github.com/danielgtaylor/huma/v2"
)

// Request and Response structs for the document API
// The request structs must be structs with fields for the request path/query/header/cookie parameters and/or body.
// The response structs must be structs with fields for the output headers and body of the operation, if any.

// PostProcessing holds the flags shared by both document operations.
type PostProcessing struct {
	LLMSummary bool `query:"llm_summary" default:"false" doc:"Rewrite the converted document into plain text with the language model. Takes precedence over llm_facts."`
	LLMFacts   bool `query:"llm_facts" default:"false" doc:"Extract facts from the converted document, one bullet point per line"`
}

// Convert document from URL
// POST Path: "/doc_url"

type DocURLRequest struct {
	SourceURL string `query:"source_url" required:"true" doc:"Absolute http(s) URL of the document" example:"https://example.com/sample.pdf"`
	PostProcessing
}

// Convert uploaded document
// POST Path: "/doc_upload"

type DocUploadForm struct {
	File huma.FormFile `form:"file" required:"true" doc:"Document to convert (PDF, HTML, Markdown or plain text)"`
}

type DocUploadRequest struct {
	PostProcessing
	RawBody huma.MultipartFormFiles[DocUploadForm]
}

// DocResponse is shared by both operations. The body is a JSON string
// holding the Markdown or the language model output.
type DocResponse struct {
	RequestID string `header:"X-Request-ID" doc:"Identifier of the request, also found in the service logs"`
	Body      string
}

// Health check
// GET Path: "/health"

type HealthRequest struct{}

type HealthResponse struct {
	Body struct {
		Status    string `json:"status" doc:"Always ok while the service is up" example:"ok"`
		Converter string `json:"converter" doc:"Active conversion backend" example:"local"`
		Model     string `json:"model" doc:"Configured language model"`
		Version   string `json:"version" doc:"Service version"`
	}
}
