package github

import "github.com/goccy/go-json"

// RepoRef identifies the repository to analyze.
// Branch selects refs/heads/<Branch>; empty means the default branch (HEAD).
type RepoRef struct {
	Owner  string
	Name   string
	Branch string
}

// RepoMetadata is the repository-level information returned by both API
// surfaces.
type RepoMetadata struct {
	FullName        string
	Description     string
	Stars           uint32
	PrimaryLanguage string
}

// FileContent is one fetched manifest file. Files missing from the
// repository are simply absent from the result, never an error.
type FileContent struct {
	Path    string
	Content string
}

// RepoAnalysis is the result of analyzing one repository.
// Files is empty when the REST fallback served the request: the v3 surface
// used here carries no file contents.
type RepoAnalysis struct {
	Metadata RepoMetadata
	Files    []FileContent
}

// graphQLRequest is the POST body of the v4 endpoint.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the envelope of the v4 endpoint. The repository object
// is kept as raw fields because the batched query aliases one Blob object
// per manifest file (f0, f1, ...).
type graphQLResponse struct {
	Data struct {
		Repository map[string]json.RawMessage `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// blobObject is the "... on Blob { text }" selection of one aliased object.
// A null object (file absent at the requested ref) decodes to a nil pointer.
type blobObject struct {
	Text *string `json:"text"`
}

// restRepository mirrors the v3 repository resource fields we consume.
type restRepository struct {
	FullName        string  `json:"full_name"`
	Description     *string `json:"description"`
	StargazersCount uint32  `json:"stargazers_count"`
	Language        *string `json:"language"`
}
