package api

// Citation points an assistant answer back at ingested-document evidence.
type Citation struct {
	Source         string   `json:"source"`
	Page           string   `json:"page,omitempty"`
	Excerpt        string   `json:"excerpt,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
	Type           string   `json:"type,omitempty"`
}

// QueryRequest is the body of POST /chat/query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// QueryResponse holds the backend's answer and its supporting citations.
type QueryResponse struct {
	Answer       string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	SourcesCount int        `json:"sources_count,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// User describes the authenticated account as the backend reports it.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// AuthResponse is the success shape of login and register.
type AuthResponse struct {
	Token string `json:"access_token"`
	User  User   `json:"user"`
}

// UploadResponse is the success shape of a document upload.
type UploadResponse struct {
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed"`
}

// DocumentRecord is one entry of the backend's document list. ChunkCount is
// only present on fresh-upload notifications, never on listed records.
type DocumentRecord struct {
	Filename   string  `json:"filename"`
	Size       int64   `json:"size,omitempty"`
	UploadedAt float64 `json:"uploaded_at,omitempty"`
	ChunkCount int     `json:"chunk_count,omitempty"`
}

// ListDocumentsResponse is the success shape of GET /documents/list.
type ListDocumentsResponse struct {
	Documents []DocumentRecord `json:"documents"`
	Total     int              `json:"total,omitempty"`
}

// errorBody is the backend's uniform failure shape.
type errorBody struct {
	Detail string `json:"detail"`
}
