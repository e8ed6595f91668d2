package server

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type RootRequest struct {
	Root string `json:"root" binding:"required"`
}

// RootResponse carries a repository root; Root is null when detection found
// nothing
type RootResponse struct {
	Root *string `json:"root"`
}

type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

type PathsRequest struct {
	Paths []string `json:"paths" binding:"required"`
}

type DiffsRequest struct {
	Paths  []string `json:"paths" binding:"required"`
	Staged bool     `json:"staged"`
}

type CommitRequest struct {
	Message string `json:"message"`
}

type CommitResponse struct {
	Commit string `json:"commit"`
}

type CountResponse struct {
	Count uint32 `json:"count"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Phase   string `json:"phase"`
	Root    string `json:"root,omitempty"`
	Watched string `json:"watched,omitempty"`
	Clients int    `json:"clients"`
}
