// Package github is a minimal client for the two code-hosting API surfaces
// the ingestion pipeline consumes: the GraphQL v4 endpoint (preferred, one
// batched query per repository) and the REST v3 repository resource
// (fallback, metadata only).
//
// The client retries 5xx responses and network failures with bounded
// exponential backoff; 4xx responses are returned immediately as
// *RemoteError and never retried. Authentication is an optional bearer
// token; unauthenticated requests are permitted and simply rate-limited
// harder by the remote side.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
)

const (
	// DefaultGraphQLURL is the public v4 endpoint.
	DefaultGraphQLURL = "https://api.github.com/graphql"

	// DefaultRESTURL is the public v3 base URL.
	DefaultRESTURL = "https://api.github.com"

	userAgent = "fact-tools/1.0"

	// Retry policy for 5xx and network failures.
	retryBaseInterval = 200 * time.Millisecond
	retryMultiplier   = 2
	retryJitter       = 0.2
	maxAttempts       = 3
)

// ManifestFiles is the fixed set of package manifests requested from every
// repository. Missing files are not errors.
var ManifestFiles = []string{
	"mix.exs",
	"Cargo.toml",
	"package.json",
	"pyproject.toml",
	"setup.py",
	"gleam.toml",
}

// Config configures a Client. Zero values select the public endpoints, no
// token and a 30 second request timeout.
type Config struct {
	GraphQLURL string
	RESTURL    string
	Token      string
	Timeout    time.Duration
}

// Client talks to the remote code-hosting API. Safe for concurrent use.
type Client struct {
	graphqlURL string
	restURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	if cfg.RESTURL == "" {
		cfg.RESTURL = DefaultRESTURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		graphqlURL: cfg.GraphQLURL,
		restURL:    strings.TrimSuffix(cfg.RESTURL, "/"),
		token:      cfg.Token,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// AnalyzeGraphQL issues the single batched v4 query: repository metadata
// plus one aliased Blob object per manifest file at the requested ref.
func (c *Client) AnalyzeGraphQL(ctx context.Context, ref RepoRef) (*RepoAnalysis, error) {
	body, err := json.Marshal(graphQLRequest{
		Query: buildRepositoryQuery(ref),
		Variables: map[string]any{
			"owner": ref.Owner,
			"name":  ref.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	respBody, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(resp.Errors) > 0 {
		// Schema-level errors (bad ref, missing scopes) are not worth
		// retrying on this surface; the caller falls back to REST.
		return nil, fmt.Errorf("%w: graphql: %s", ErrTransport, resp.Errors[0].Message)
	}
	if resp.Data.Repository == nil {
		return nil, &RemoteError{Status: http.StatusNotFound, Body: "repository not found"}
	}

	return parseGraphQLRepository(ref, resp.Data.Repository)
}

// FetchRepoREST fetches repository metadata from the v3 surface. The result
// never carries file contents.
func (c *Client) FetchRepoREST(ctx context.Context, ref RepoRef) (*RepoAnalysis, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.restURL, ref.Owner, ref.Name)

	respBody, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var repo restRepository
	if err := json.Unmarshal(respBody, &repo); err != nil {
		return nil, fmt.Errorf("decode repository response: %w", err)
	}

	meta := RepoMetadata{
		FullName: repo.FullName,
		Stars:    repo.StargazersCount,
	}
	if meta.FullName == "" {
		meta.FullName = ref.Owner + "/" + ref.Name
	}
	if repo.Description != nil {
		meta.Description = *repo.Description
	}
	if repo.Language != nil {
		meta.PrimaryLanguage = *repo.Language
	}
	return &RepoAnalysis{Metadata: meta}, nil
}

// doWithRetry executes one logical request with the retry policy: 5xx and
// network failures back off exponentially (200 ms base, factor 2, +-20%
// jitter, 3 attempts); 4xx aborts immediately; a deadline hit surfaces as
// ErrTimeout.
func (c *Client) doWithRetry(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryBaseInterval
	policy.Multiplier = retryMultiplier
	policy.RandomizationFactor = retryJitter

	var respBody []byte
	attempt := 0
	operation := func() error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := build(reqCtx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrTimeout, err))
			}
			c.logger.Warn("github request failed, will retry",
				"attempt", attempt, "error", err)
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return fmt.Errorf("%w: read response: %v", ErrTransport, err)
		}

		switch {
		case resp.StatusCode >= 500:
			c.logger.Warn("github responded with server error, will retry",
				"attempt", attempt, "status", resp.StatusCode)
			return fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(&RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))})
		}

		respBody = body
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// buildRepositoryQuery assembles the batched query. Each manifest file gets
// an aliased object selection at "<ref>:<path>"; file paths come from the
// fixed ManifestFiles list, so embedding them in the query text is safe.
func buildRepositoryQuery(ref RepoRef) string {
	expr := "HEAD"
	if ref.Branch != "" {
		expr = "refs/heads/" + ref.Branch
	}

	var b strings.Builder
	b.WriteString("query($owner: String!, $name: String!) {\n")
	b.WriteString("  repository(owner: $owner, name: $name) {\n")
	b.WriteString("    description\n")
	b.WriteString("    stargazerCount\n")
	b.WriteString("    primaryLanguage { name }\n")
	for i, path := range ManifestFiles {
		fmt.Fprintf(&b, "    f%d: object(expression: %q) { ... on Blob { text } }\n", i, expr+":"+path)
	}
	b.WriteString("  }\n}")
	return b.String()
}

// parseGraphQLRepository turns the raw aliased repository object into a
// RepoAnalysis. Absent files (null objects or empty text) are skipped.
func parseGraphQLRepository(ref RepoRef, raw map[string]json.RawMessage) (*RepoAnalysis, error) {
	analysis := &RepoAnalysis{
		Metadata: RepoMetadata{FullName: ref.Owner + "/" + ref.Name},
	}

	if msg, ok := raw["description"]; ok {
		var desc *string
		if err := json.Unmarshal(msg, &desc); err != nil {
			return nil, fmt.Errorf("decode repository description: %w", err)
		}
		if desc != nil {
			analysis.Metadata.Description = *desc
		}
	}
	if msg, ok := raw["stargazerCount"]; ok {
		if err := json.Unmarshal(msg, &analysis.Metadata.Stars); err != nil {
			return nil, fmt.Errorf("decode stargazer count: %w", err)
		}
	}
	if msg, ok := raw["primaryLanguage"]; ok {
		var lang *struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(msg, &lang); err != nil {
			return nil, fmt.Errorf("decode primary language: %w", err)
		}
		if lang != nil {
			analysis.Metadata.PrimaryLanguage = lang.Name
		}
	}

	for i, path := range ManifestFiles {
		msg, ok := raw[fmt.Sprintf("f%d", i)]
		if !ok {
			continue
		}
		var blob *blobObject
		if err := json.Unmarshal(msg, &blob); err != nil {
			return nil, fmt.Errorf("decode file object %q: %w", path, err)
		}
		if blob == nil || blob.Text == nil || strings.TrimSpace(*blob.Text) == "" {
			continue
		}
		analysis.Files = append(analysis.Files, FileContent{Path: path, Content: *blob.Text})
	}

	return analysis, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
