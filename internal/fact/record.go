package fact

import (
	"fmt"
	"time"
)

// Record is the knowledge payload stored under one Key.
//
// The ecosystem/tool/version fields duplicate the Key on purpose: a record
// is self-describing even when read outside the store (export files, raw
// backend dumps). Validate enforces that the duplication agrees with the
// key a record is stored under.
//
// All slices preserve insertion order across codec round-trips.
type Record struct {
	Tool      string `json:"tool" msgpack:"tool"`
	Version   string `json:"version" msgpack:"version"`
	Ecosystem string `json:"ecosystem" msgpack:"ecosystem"`

	Documentation   string            `json:"documentation" msgpack:"documentation"`
	Snippets        []Snippet         `json:"snippets" msgpack:"snippets"`
	Examples        []Example         `json:"examples" msgpack:"examples"`
	BestPractices   []BestPractice    `json:"best_practices" msgpack:"best_practices"`
	Troubleshooting []Troubleshooting `json:"troubleshooting" msgpack:"troubleshooting"`
	Sources         []Source          `json:"sources" msgpack:"sources"`
	Dependencies    []string          `json:"dependencies" msgpack:"dependencies"`
	Tags            []string          `json:"tags" msgpack:"tags"`

	// LastUpdated is the wall-clock time of the last successful write.
	// The store façade keeps it monotonic per key.
	LastUpdated time.Time `json:"last_updated" msgpack:"last_updated"`

	// Provenance names the ingestion pathway that produced this record,
	// e.g. "graphql-v4", "rest-fallback" or "manual".
	Provenance string `json:"provenance" msgpack:"provenance"`
}

// Snippet is a piece of code extracted from a repository, typically the raw
// contents of a package manifest.
type Snippet struct {
	Title       string `json:"title" msgpack:"title"`
	Code        string `json:"code" msgpack:"code"`
	Language    string `json:"language" msgpack:"language"`
	Description string `json:"description" msgpack:"description"`
	FilePath    string `json:"file_path" msgpack:"file_path"`
	LineNumber  uint32 `json:"line_number" msgpack:"line_number"`
}

// Example is a worked usage example with an explanation.
type Example struct {
	Title       string   `json:"title" msgpack:"title"`
	Code        string   `json:"code" msgpack:"code"`
	Explanation string   `json:"explanation" msgpack:"explanation"`
	Tags        []string `json:"tags" msgpack:"tags"`
}

// BestPractice is a recommendation with its rationale.
// Example is optional; nil means no illustrating code exists.
type BestPractice struct {
	Practice  string  `json:"practice" msgpack:"practice"`
	Rationale string  `json:"rationale" msgpack:"rationale"`
	Example   *string `json:"example,omitempty" msgpack:"example"`
}

// Troubleshooting pairs a known issue with its solution.
type Troubleshooting struct {
	Issue      string   `json:"issue" msgpack:"issue"`
	Solution   string   `json:"solution" msgpack:"solution"`
	References []string `json:"references" msgpack:"references"`
}

// Source records where a piece of knowledge was ingested from.
// Repo is "<owner>/<name>"; it is a by-name reference, never a link to
// another record.
type Source struct {
	Repo       string `json:"repo" msgpack:"repo"`
	Stars      uint32 `json:"stars" msgpack:"stars"`
	LastUpdate string `json:"last_update" msgpack:"last_update"`
}

// Key returns the Key embedded in the record.
func (r *Record) Key() Key {
	return Key{Ecosystem: r.Ecosystem, Tool: r.Tool, Version: r.Version}
}

// Validate checks that the record's embedded identity matches key.
// Returns ErrInvariantViolation on mismatch.
func (r *Record) Validate(key Key) error {
	if r.Ecosystem != key.Ecosystem || r.Tool != key.Tool || r.Version != key.Version {
		return fmt.Errorf("%w: record is %s, key is %s", ErrInvariantViolation, r.Key(), key)
	}
	return nil
}

// Equal reports whether two records carry the same content.
// Timestamps are compared with time.Time.Equal so records survive codec
// round-trips that normalize the timezone.
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	if r.Tool != other.Tool || r.Version != other.Version || r.Ecosystem != other.Ecosystem ||
		r.Documentation != other.Documentation || r.Provenance != other.Provenance {
		return false
	}
	if !r.LastUpdated.Equal(other.LastUpdated) {
		return false
	}
	if !equalSnippets(r.Snippets, other.Snippets) ||
		!equalExamples(r.Examples, other.Examples) ||
		!equalBestPractices(r.BestPractices, other.BestPractices) ||
		!equalTroubleshooting(r.Troubleshooting, other.Troubleshooting) ||
		!equalSources(r.Sources, other.Sources) {
		return false
	}
	return equalStrings(r.Dependencies, other.Dependencies) && equalStrings(r.Tags, other.Tags)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalSnippets(a, b []Snippet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalExamples(a, b []Example) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Title != b[i].Title || a[i].Code != b[i].Code || a[i].Explanation != b[i].Explanation {
			return false
		}
		if !equalStrings(a[i].Tags, b[i].Tags) {
			return false
		}
	}
	return true
}

func equalBestPractices(a, b []BestPractice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Practice != b[i].Practice || a[i].Rationale != b[i].Rationale {
			return false
		}
		ae, be := a[i].Example, b[i].Example
		if (ae == nil) != (be == nil) {
			return false
		}
		if ae != nil && *ae != *be {
			return false
		}
	}
	return true
}

func equalTroubleshooting(a, b []Troubleshooting) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Issue != b[i].Issue || a[i].Solution != b[i].Solution {
			return false
		}
		if !equalStrings(a[i].References, b[i].References) {
			return false
		}
	}
	return true
}

func equalSources(a, b []Source) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
