package ingest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/koopa0/fact-tools/internal/fact"
	"github.com/koopa0/fact-tools/internal/github"
	"github.com/koopa0/fact-tools/internal/testutil"
)

// fakeClient scripts both API surfaces per test.
type fakeClient struct {
	graphqlAnalysis *github.RepoAnalysis
	graphqlErr      error
	restAnalysis    *github.RepoAnalysis
	restErr         error

	graphqlCalls int
	restCalls    int
	lastRef      github.RepoRef
}

func (f *fakeClient) AnalyzeGraphQL(ctx context.Context, ref github.RepoRef) (*github.RepoAnalysis, error) {
	f.graphqlCalls++
	f.lastRef = ref
	return f.graphqlAnalysis, f.graphqlErr
}

func (f *fakeClient) FetchRepoREST(ctx context.Context, ref github.RepoRef) (*github.RepoAnalysis, error) {
	f.restCalls++
	f.lastRef = ref
	return f.restAnalysis, f.restErr
}

func mustKey(t *testing.T, ecosystem, tool, version string) fact.Key {
	t.Helper()
	key, err := fact.NewKey(ecosystem, tool, version)
	if err != nil {
		t.Fatalf("NewKey() error: %v", err)
	}
	return key
}

func TestIngestGraphQL(t *testing.T) {
	client := &fakeClient{
		graphqlAnalysis: &github.RepoAnalysis{
			Metadata: github.RepoMetadata{
				FullName:        "phoenixframework/phoenix",
				Description:     "Peace of mind from prototype to production",
				Stars:           21000,
				PrimaryLanguage: "Elixir",
			},
			Files: []github.FileContent{
				{Path: "mix.exs", Content: "defmodule Phoenix.MixProject do\nend"},
				{Path: "package.json", Content: `{"name": "phoenix"}`},
			},
		},
	}
	ingestor := New(client, testutil.Logger(t))

	key := mustKey(t, "beam", "phoenix", "1.7.0")
	record, err := ingestor.Ingest(context.Background(), key)
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if err := record.Validate(key); err != nil {
		t.Fatalf("ingested record does not match its key: %v", err)
	}
	if record.Provenance != ProvenanceGraphQL {
		t.Errorf("Provenance = %q, want %q", record.Provenance, ProvenanceGraphQL)
	}
	if record.Documentation != "Peace of mind from prototype to production" {
		t.Errorf("Documentation = %q, want repository description", record.Documentation)
	}
	if record.LastUpdated.IsZero() {
		t.Error("LastUpdated not stamped")
	}

	if len(record.Sources) != 1 {
		t.Fatalf("Sources = %v, want exactly one", record.Sources)
	}
	if record.Sources[0].Repo != "phoenixframework/phoenix" || record.Sources[0].Stars != 21000 {
		t.Errorf("Source = %+v, want repo and star count carried over", record.Sources[0])
	}

	if len(record.Snippets) != 2 {
		t.Fatalf("Snippets = %d, want 2", len(record.Snippets))
	}
	first := record.Snippets[0]
	if first.Title != "mix.exs Configuration" {
		t.Errorf("snippet title = %q, want %q", first.Title, "mix.exs Configuration")
	}
	if first.Language != "elixir" {
		t.Errorf("snippet language = %q, want elixir", first.Language)
	}
	if record.Snippets[1].Language != "json" {
		t.Errorf("second snippet language = %q, want json", record.Snippets[1].Language)
	}

	if client.restCalls != 0 {
		t.Errorf("REST surface called %d times on the happy path", client.restCalls)
	}
}

func TestIngestRESTFallback(t *testing.T) {
	client := &fakeClient{
		graphqlErr: errors.New("graphql endpoint unavailable"),
		restAnalysis: &github.RepoAnalysis{
			Metadata: github.RepoMetadata{
				FullName: "tokio-rs/tokio",
				Stars:    26000,
			},
		},
	}
	logger, logs := testutil.CapturingLogger(t)
	ingestor := New(client, logger)

	record, err := ingestor.Ingest(context.Background(), mustKey(t, "rust", "tokio", "1.35.0"))
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if record.Provenance != ProvenanceREST {
		t.Errorf("Provenance = %q, want %q", record.Provenance, ProvenanceREST)
	}
	if !strings.Contains(logs.String(), "falling back to rest") {
		t.Error("fallback not logged")
	}
	if len(record.Snippets) != 0 {
		t.Errorf("Snippets = %d, want none from the metadata-only surface", len(record.Snippets))
	}
	if client.graphqlCalls != 1 || client.restCalls != 1 {
		t.Errorf("calls = %d graphql / %d rest, want 1/1", client.graphqlCalls, client.restCalls)
	}
}

func TestIngestRemoteRejectionNoFallback(t *testing.T) {
	client := &fakeClient{
		graphqlErr: &github.RemoteError{Status: http.StatusUnauthorized, Body: "bad credentials"},
	}
	ingestor := New(client, testutil.Logger(t))

	_, err := ingestor.Ingest(context.Background(), mustKey(t, "beam", "phoenix", "1.7.0"))

	var remote *github.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want *RemoteError", err)
	}
	if remote.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", remote.Status)
	}
	if client.restCalls != 0 {
		t.Error("REST fallback attempted after a remote rejection")
	}
}

func TestIngestTimeoutOnBothSurfaces(t *testing.T) {
	client := &fakeClient{
		graphqlErr: github.ErrTimeout,
		restErr:    github.ErrTimeout,
	}
	ingestor := New(client, testutil.Logger(t))

	_, err := ingestor.Ingest(context.Background(), mustKey(t, "beam", "phoenix", "1.7.0"))
	if !errors.Is(err, github.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if !strings.Contains(err.Error(), "after fallback") {
		t.Errorf("error %q does not say the fallback was tried", err)
	}
}

func TestIngestTags(t *testing.T) {
	analysis := &github.RepoAnalysis{
		Metadata: github.RepoMetadata{FullName: "pallets/flask", PrimaryLanguage: "Python"},
	}

	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{
			name: "default tag plus language",
			want: []string{"auto-discovered", "lang:python"},
		},
		{
			name: "supplied tags replace the default",
			opts: []Option{WithTags("web", "microframework")},
			want: []string{"web", "microframework", "lang:python"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestor := New(&fakeClient{graphqlAnalysis: analysis}, testutil.Logger(t))
			record, err := ingestor.Ingest(context.Background(), mustKey(t, "python", "flask", "3.0.0"), tt.opts...)
			if err != nil {
				t.Fatalf("Ingest() error: %v", err)
			}
			if len(record.Tags) != len(tt.want) {
				t.Fatalf("Tags = %v, want %v", record.Tags, tt.want)
			}
			for i, tag := range tt.want {
				if record.Tags[i] != tag {
					t.Errorf("Tags[%d] = %q, want %q", i, record.Tags[i], tag)
				}
			}
		})
	}
}

func TestRepoResolution(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		opts      []Option
		wantOwner string
		wantName  string
		wantRef   string
	}{
		{
			name:      "explicit repository wins",
			tool:      "phoenix",
			opts:      []Option{WithRepository("myfork", "phoenix"), WithBranch("develop")},
			wantOwner: "myfork",
			wantName:  "phoenix",
			wantRef:   "develop",
		},
		{
			name:      "well-known tool",
			tool:      "ecto",
			wantOwner: "elixir-ecto",
			wantName:  "ecto",
		},
		{
			name:      "unknown tool defaults to tool/tool",
			tool:      "leftpad",
			wantOwner: "leftpad",
			wantName:  "leftpad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{graphqlAnalysis: &github.RepoAnalysis{}}
			ingestor := New(client, testutil.Logger(t))

			_, err := ingestor.Ingest(context.Background(), mustKey(t, "beam", tt.tool, "1.0.0"), tt.opts...)
			if err != nil {
				t.Fatalf("Ingest() error: %v", err)
			}
			if client.lastRef.Owner != tt.wantOwner || client.lastRef.Name != tt.wantName {
				t.Errorf("repo = %s/%s, want %s/%s",
					client.lastRef.Owner, client.lastRef.Name, tt.wantOwner, tt.wantName)
			}
			if client.lastRef.Branch != tt.wantRef {
				t.Errorf("branch = %q, want %q", client.lastRef.Branch, tt.wantRef)
			}
		})
	}
}

func TestLanguageForFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"mix.exs", "elixir"},
		{"Cargo.toml", "toml"},
		{"gleam.toml", "toml"},
		{"package.json", "json"},
		{"setup.py", "python"},
		{"Makefile", "text"},
	}
	for _, tt := range tests {
		if got := languageForFile(tt.path); got != tt.want {
			t.Errorf("languageForFile(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
