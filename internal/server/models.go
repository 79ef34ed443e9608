package server

// HTTPError is the JSON error envelope returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

type DraftCreateRequest struct {
	Title        string `json:"title"`
	OriginalBody string `json:"original_body"`
	ReauditCron  string `json:"reaudit_cron"`
}

type DraftUpdateRequest struct {
	OriginalBody  string `json:"original_body"`
	OptimizedBody string `json:"optimized_body"`
}

type CitationRequest struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
	NoFollow   bool   `json:"no_follow"`
}

type AnchorPreviewRequest struct {
	AppendReferences bool `json:"append_references"`
}

type SchemaGenerateRequest struct {
	ContentType      string   `json:"content_type"`
	AcceptedEntities []string `json:"accepted_entities"`
}

type SchemaApproveRequest struct {
	ContentType string `json:"content_type"`
	Payload     string `json:"payload"`
}

type PublishRequest struct {
	AppendReferences bool     `json:"append_references"`
	SchemaSource     string   `json:"schema_source"` // none, inserted, generated
	ContentType      string   `json:"content_type"`
	AcceptedEntities []string `json:"accepted_entities"`
	ReauditCron      string   `json:"reaudit_cron"`
	PreviewURL       string   `json:"preview_url"`
}

type PublishResponse struct {
	PostID    int64  `json:"post_id"`
	Permalink string `json:"permalink"`
}
