// Package cmd implements the fact-tools command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/fact-tools/internal/config"
	"github.com/koopa0/fact-tools/internal/github"
	"github.com/koopa0/fact-tools/internal/ingest"
	"github.com/koopa0/fact-tools/internal/log"
	"github.com/koopa0/fact-tools/internal/storage"
	"github.com/koopa0/fact-tools/internal/storage/badgerstore"
	"github.com/koopa0/fact-tools/internal/storage/filestore"
	"github.com/koopa0/fact-tools/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "fact-tools",
	Short: "fact-tools - per-tool knowledge store",
	Long: `fact-tools stores structured knowledge records per (ecosystem, tool,
version) triple: documentation, code snippets, examples, best practices and
provenance. Records are ingested from package manifests on GitHub or
supplied directly, and persisted in an embedded database or a plain
directory tree.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var (
	flagBackend string
	flagPath    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: badger or file (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "", "storage root directory (default from config)")
}

// openStore builds the component stack for one command invocation:
// config -> logger -> backend -> github client -> ingestor -> store.
// The caller must Close the returned store.
func openStore() (*store.Store, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flagBackend != "" {
		cfg.StorageBackend = flagBackend
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if flagPath != "" {
		cfg.StoragePath = flagPath
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	var backend storage.Backend
	switch cfg.StorageBackend {
	case config.BackendFile:
		backend, err = filestore.Open(filestore.Options{
			Root:     cfg.StoragePath,
			JSONMode: cfg.JSONMode,
		}, logger.With("component", "filestore"))
	default:
		backend, err = badgerstore.Open(badgerstore.Options{
			Path: cfg.StoragePath,
		}, logger.With("component", "badgerstore"))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", cfg.StorageBackend, err)
	}

	client := github.New(github.Config{
		GraphQLURL: cfg.GitHubGraphQLURL,
		RESTURL:    cfg.GitHubRESTURL,
		Token:      cfg.GitHubToken,
		Timeout:    cfg.GitHubTimeout(),
	}, logger.With("component", "github"))

	ingestor := ingest.New(client, logger.With("component", "ingest"))

	return store.New(backend, ingestor, logger.With("component", "store")), logger, nil
}
