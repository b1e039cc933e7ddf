// Package ragstore is a retrieval-augmented-generation data plane over
// PostgreSQL with a DiskANN-style vector index and a BM25 full-text
// index. It ingests documents, chunks and embeds them into a
// deduplicated store, and serves hybrid retrieval expanded through a
// document relation graph and its communities.
//
// The embedding, generation and reranking models stay outside: callers
// wire plain function values (see EmbedFunc, GenerateFunc, RerankFunc),
// typically backed by an OpenAI-compatible endpoint.
package ragstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ragstore/ragstore/internal/backup"
	"github.com/ragstore/ragstore/internal/db"
	"github.com/ragstore/ragstore/internal/ingest"
	"github.com/ragstore/ragstore/internal/search"
)

const (
	// DefaultDimension is the embedding dimension used when Config
	// leaves it zero.
	DefaultDimension = 2048

	// DefaultTextConfig is the BM25 text configuration.
	DefaultTextConfig = "simple"
)

// Metadata keys and title prefix identifying community-summary
// documents.
const (
	MetaTypeKey         = "_ragts_type"
	MetaCommunityIDKey  = "_ragts_community_id"
	MetaMemberTitlesKey = "_ragts_member_titles"
	SummaryType         = "community_summary"
	SummaryTitlePrefix  = "_ragts_community_"
)

// EmbedFunc turns a batch of texts into embedding vectors, one per
// input, in input order.
type EmbedFunc = ingest.EmbedFunc

// GenerateFunc produces an answer for query given a retrieval context.
type GenerateFunc func(ctx context.Context, contextText, query string) (string, error)

// RerankFunc reorders documents by relevance to query, returning the
// document indices in descending relevance order.
type RerankFunc func(ctx context.Context, query string, documents []string) ([]int, error)

// Document is one document to ingest.
type Document = ingest.InputDocument

// RelationTarget names one relation edge by target title.
type RelationTarget = backup.RelationTarget

// Relation is a relation edge resolved to document titles.
type Relation = db.TitledRelation

// SearchResult is one retrieved chunk.
type SearchResult = search.Result

// Config configures a Client.
type Config struct {
	// ConnectionString is the PostgreSQL connection string. Required.
	ConnectionString string

	// Dimension is the embedding dimension; zero means DefaultDimension.
	Dimension int

	// TextConfig is the BM25 text configuration; empty means
	// DefaultTextConfig.
	TextConfig string

	// Logger receives structured progress logs. Nil means a quiet
	// default.
	Logger *logrus.Logger
}

// Client is the stateful handle over one database. The connection pool
// is acquired lazily on first use and released by Close. Methods on one
// Client must not race with schema changes on the same Client.
type Client struct {
	cfg Config
	log *logrus.Logger

	mu sync.Mutex
	db *db.DB
}

// New validates cfg and returns an unconnected Client.
func New(cfg Config) (*Client, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("ragstore: connection string is required")
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("ragstore: dimension must be positive")
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.TextConfig == "" {
		cfg.TextConfig = DefaultTextConfig
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return &Client{cfg: cfg, log: log}, nil
}

// Dimension returns the embedding dimension this handle enforces.
func (c *Client) Dimension() int {
	return c.cfg.Dimension
}

// conn returns the pool, connecting on first use.
func (c *Client) conn(ctx context.Context) (*db.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	database, err := db.New(ctx, c.cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	c.db = database
	return c.db, nil
}

// Init creates extensions, tables and indexes. It is idempotent.
func (c *Client) Init(ctx context.Context) error {
	database, err := c.conn(ctx)
	if err != nil {
		return err
	}
	return database.InitSchema(ctx, c.cfg.Dimension, c.cfg.TextConfig)
}

// Drop removes all tables and their data.
func (c *Client) Drop(ctx context.Context) error {
	database, err := c.conn(ctx)
	if err != nil {
		return err
	}
	return database.DropSchema(ctx)
}

// Close releases the connection pool. The Client may be reused; the
// next operation reconnects.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}

// FetchRelations returns every relation edge touching the given
// documents, resolved to titles. Callers use it with BuildGraphContext
// to reproduce the context the Query method builds.
func (c *Client) FetchRelations(ctx context.Context, docIDs []int64) ([]Relation, error) {
	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	return database.RelationsForDocuments(ctx, docIDs)
}

// BuildContext renders results as the numbered context block given to
// generation.
func BuildContext(results []SearchResult) string {
	return search.BuildContext(results)
}

// BuildGraphContext renders results preceded by their document relation
// edges.
func BuildGraphContext(results []SearchResult, relations []Relation) string {
	return search.BuildGraphContext(results, relations)
}
