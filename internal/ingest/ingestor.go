// Package ingest turns a fact key into a knowledge record by fetching
// package manifests and repository metadata from the remote code-hosting
// API and normalizing them.
//
// The GraphQL v4 surface is tried first; on transport or authentication
// failure the REST v3 surface serves repository metadata without file
// contents. A 4xx rejection aborts immediately. Nothing is persisted here;
// the store façade decides what to do with the produced record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/fact-tools/internal/fact"
	"github.com/koopa0/fact-tools/internal/github"
)

// Provenance values stamped on ingested records.
const (
	ProvenanceGraphQL = "graphql-v4"
	ProvenanceREST    = "rest-fallback"
	ProvenanceManual  = "manual"
)

// wellKnownRepos maps tools to their canonical repositories when the
// repository cannot be derived from the tool name alone. Callers can always
// override with WithRepository.
var wellKnownRepos = map[string]string{
	"phoenix":   "phoenixframework/phoenix",
	"ecto":      "elixir-ecto/ecto",
	"plug":      "elixir-plug/plug",
	"cowboy":    "ninenines/cowboy",
	"jason":     "michalmuskala/jason",
	"broadway":  "dashbitco/broadway",
	"oban":      "oban-bg/oban",
	"absinthe":  "absinthe-graphql/absinthe",
	"bandit":    "mtrudel/bandit",
	"finch":     "sneako/finch",
	"liveview":  "phoenixframework/phoenix_live_view",
	"live_view": "phoenixframework/phoenix_live_view",
	"tokio":     "tokio-rs/tokio",
	"serde":     "serde-rs/serde",
	"axum":      "tokio-rs/axum",
	"express":   "expressjs/express",
	"fastify":   "fastify/fastify",
	"flask":     "pallets/flask",
	"django":    "django/django",
	"gleam":     "gleam-lang/gleam",
}

// Client is the slice of the remote API the ingestor consumes.
// *github.Client satisfies it; tests substitute fakes.
type Client interface {
	AnalyzeGraphQL(ctx context.Context, ref github.RepoRef) (*github.RepoAnalysis, error)
	FetchRepoREST(ctx context.Context, ref github.RepoRef) (*github.RepoAnalysis, error)
}

// Ingestor produces records from the remote API. Safe for concurrent use.
type Ingestor struct {
	client Client
	logger *slog.Logger
}

// New creates an Ingestor. A nil logger falls back to slog.Default().
func New(client Client, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{client: client, logger: logger}
}

// Option configures a single ingestion request.
type Option func(*settings)

type settings struct {
	owner  string
	repo   string
	branch string
	tags   []string
}

// WithRepository overrides repository resolution with an explicit
// owner/name pair.
func WithRepository(owner, name string) Option {
	return func(s *settings) {
		s.owner = owner
		s.repo = name
	}
}

// WithBranch analyzes refs/heads/<branch> instead of the default branch.
func WithBranch(branch string) Option {
	return func(s *settings) {
		s.branch = branch
	}
}

// WithTags seeds the record's tags. Without it the record is tagged
// "auto-discovered".
func WithTags(tags ...string) Option {
	return func(s *settings) {
		s.tags = tags
	}
}

// Ingest fetches and normalizes knowledge for key.
//
// Failure semantics:
//   - 4xx from the remote API: *github.RemoteError, no fallback, no retry
//   - transport failure or timeout on GraphQL: REST fallback is attempted
//   - timeout on the fallback too: github.ErrTimeout
func (i *Ingestor) Ingest(ctx context.Context, key fact.Key, opts ...Option) (*fact.Record, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	ref := i.resolveRepo(key, s)
	logger := i.logger.With("request_id", uuid.NewString(), "key", key.String(), "repo", ref.Owner+"/"+ref.Name)

	analysis, provenance, err := i.fetch(ctx, ref, logger)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", key, err)
	}

	record := i.normalize(key, analysis, provenance, s.tags)
	logger.Info("ingested record",
		"provenance", provenance,
		"snippets", len(record.Snippets),
		"stars", analysis.Metadata.Stars)
	return record, nil
}

// fetch tries GraphQL first and falls back to REST on transport-level
// failures. Remote rejections propagate untouched.
func (i *Ingestor) fetch(ctx context.Context, ref github.RepoRef, logger *slog.Logger) (*github.RepoAnalysis, string, error) {
	analysis, err := i.client.AnalyzeGraphQL(ctx, ref)
	if err == nil {
		return analysis, ProvenanceGraphQL, nil
	}

	var remote *github.RemoteError
	if errors.As(err, &remote) {
		return nil, "", err
	}

	logger.Warn("graphql analysis failed, falling back to rest", "error", err)

	analysis, restErr := i.client.FetchRepoREST(ctx, ref)
	if restErr != nil {
		if errors.Is(restErr, github.ErrTimeout) || errors.Is(err, github.ErrTimeout) {
			return nil, "", fmt.Errorf("%w (after fallback)", github.ErrTimeout)
		}
		return nil, "", restErr
	}
	return analysis, ProvenanceREST, nil
}

// normalize converts a repository analysis into a record for key.
func (i *Ingestor) normalize(key fact.Key, analysis *github.RepoAnalysis, provenance string, tags []string) *fact.Record {
	record := &fact.Record{
		Tool:          key.Tool,
		Version:       key.Version,
		Ecosystem:     key.Ecosystem,
		Documentation: analysis.Metadata.Description,
		Sources: []fact.Source{{
			Repo:  analysis.Metadata.FullName,
			Stars: analysis.Metadata.Stars,
		}},
		LastUpdated: time.Now(),
		Provenance:  provenance,
	}

	for _, file := range analysis.Files {
		if strings.TrimSpace(file.Content) == "" {
			continue
		}
		record.Snippets = append(record.Snippets, fact.Snippet{
			Title:       file.Path + " Configuration",
			Code:        file.Content,
			Language:    languageForFile(file.Path),
			Description: "Package configuration from " + file.Path,
			FilePath:    file.Path,
			LineNumber:  0,
		})
	}

	if len(tags) > 0 {
		record.Tags = append(record.Tags, tags...)
	} else {
		record.Tags = append(record.Tags, "auto-discovered")
	}
	if lang := analysis.Metadata.PrimaryLanguage; lang != "" {
		record.Tags = append(record.Tags, "lang:"+strings.ToLower(lang))
	}

	return record
}

// resolveRepo picks the repository to analyze: explicit option, well-known
// tool table, then <tool>/<tool> as the conventional default.
func (i *Ingestor) resolveRepo(key fact.Key, s settings) github.RepoRef {
	if s.owner != "" && s.repo != "" {
		return github.RepoRef{Owner: s.owner, Name: s.repo, Branch: s.branch}
	}
	if full, ok := wellKnownRepos[key.Tool]; ok {
		owner, name, _ := strings.Cut(full, "/")
		return github.RepoRef{Owner: owner, Name: name, Branch: s.branch}
	}
	return github.RepoRef{Owner: key.Tool, Name: key.Tool, Branch: s.branch}
}

// languageForFile derives the snippet language from the file extension.
func languageForFile(filePath string) string {
	switch path.Ext(filePath) {
	case ".exs":
		return "elixir"
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	case ".py":
		return "python"
	default:
		return "text"
	}
}
