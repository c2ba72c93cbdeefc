// Package testutil provides shared test helpers: silent loggers and a fake
// GitHub API server.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// FakeRepo is the canned repository served by FakeGitHub.
type FakeRepo struct {
	Owner           string
	Name            string
	Description     string
	Stars           uint32
	PrimaryLanguage string
	// Files maps manifest path to contents; only these appear as Blob
	// objects in GraphQL responses.
	Files map[string]string
}

// FakeGitHub is an httptest server imitating both API surfaces.
// Mutate the Fail* fields between requests to exercise fallback paths.
type FakeGitHub struct {
	Server *httptest.Server
	Repo   FakeRepo

	// FailGraphQL makes POST /graphql respond with the given status
	// (0 = serve normally). Use 500 for retryable, 401 for rejection.
	FailGraphQL int

	// FailREST does the same for the REST surface.
	FailREST int

	// GraphQLCalls and RESTCalls count requests served.
	GraphQLCalls int
	RESTCalls    int
}

// NewFakeGitHub starts the fake server. It is closed automatically when the
// test finishes.
func NewFakeGitHub(t *testing.T, repo FakeRepo) *FakeGitHub {
	t.Helper()

	f := &FakeGitHub{Repo: repo}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// GraphQLURL returns the fake v4 endpoint.
func (f *FakeGitHub) GraphQLURL() string { return f.Server.URL + "/graphql" }

// RESTURL returns the fake v3 base URL.
func (f *FakeGitHub) RESTURL() string { return f.Server.URL }

func (f *FakeGitHub) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/graphql" {
		f.GraphQLCalls++
		if f.FailGraphQL != 0 {
			http.Error(w, "induced graphql failure", f.FailGraphQL)
			return
		}
		f.serveGraphQL(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/repos/") {
		f.RESTCalls++
		if f.FailREST != 0 {
			http.Error(w, "induced rest failure", f.FailREST)
			return
		}
		f.serveREST(w)
		return
	}

	http.NotFound(w, r)
}

// serveGraphQL answers the batched repository query. Aliases f0..fN follow
// the fixed manifest order used by the client.
func (f *FakeGitHub) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	repo := map[string]any{
		"description":    f.Repo.Description,
		"stargazerCount": f.Repo.Stars,
	}
	if f.Repo.PrimaryLanguage != "" {
		repo["primaryLanguage"] = map[string]string{"name": f.Repo.PrimaryLanguage}
	} else {
		repo["primaryLanguage"] = nil
	}

	// The query aliases objects in ManifestFiles order; recover the paths
	// from the query text so the fake stays in sync with the client.
	for i, path := range manifestPathsFromQuery(req.Query) {
		alias := "f" + strconv.Itoa(i)
		if content, ok := f.Repo.Files[path]; ok {
			repo[alias] = map[string]string{"text": content}
		} else {
			repo[alias] = nil
		}
	}

	writeJSON(w, map[string]any{"data": map[string]any{"repository": repo}})
}

func (f *FakeGitHub) serveREST(w http.ResponseWriter) {
	writeJSON(w, map[string]any{
		"full_name":        f.Repo.Owner + "/" + f.Repo.Name,
		"description":      f.Repo.Description,
		"stargazers_count": f.Repo.Stars,
		"language":         f.Repo.PrimaryLanguage,
	})
}

// manifestPathsFromQuery extracts the "<ref>:<path>" expressions in alias
// order from the query text.
func manifestPathsFromQuery(query string) []string {
	var paths []string
	rest := query
	for {
		idx := strings.Index(rest, `expression: "`)
		if idx < 0 {
			return paths
		}
		rest = rest[idx+len(`expression: "`):]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return paths
		}
		expr := rest[:end]
		if _, path, ok := strings.Cut(expr, ":"); ok {
			paths = append(paths, path)
		}
		rest = rest[end:]
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
