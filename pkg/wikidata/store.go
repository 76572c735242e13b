package wikidata

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/monitoring"
	"github.com/NERVsystems/osmgender/pkg/tracing"
)

// DefaultCacheSize bounds the number of decoded entities kept in memory.
const DefaultCacheSize = 4096

const cacheType = "wikidata_entity"

// Store loads entity documents written by the wikidata stage. Entities are
// decoded on first use and memoized, and concurrent first loads of the same
// identifier share a single read.
type Store struct {
	dir    string
	cache  *lru.Cache[string, *Entity]
	group  singleflight.Group
	logger *slog.Logger
}

// NewStore creates a store reading <dir>/<Q>.json files.
func NewStore(dir string, size int, logger *slog.Logger) (*Store, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Entity](size)
	if err != nil {
		return nil, fmt.Errorf("creating entity cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, cache: cache, logger: logger}, nil
}

// Dir returns the directory documents are read from.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file holding the document of id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Exists reports whether the document of id has been downloaded.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Entity returns the entity of id. A missing document is a MISSING_DOCUMENT
// error and a corrupt one a PARSE_ERROR.
func (s *Store) Entity(ctx context.Context, id string) (*Entity, error) {
	if e, ok := s.cache.Get(id); ok {
		monitoring.RecordCacheHit(cacheType)
		return e, nil
	}
	monitoring.RecordCacheMiss(cacheType)

	v, err, shared := s.group.Do(id, func() (interface{}, error) {
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("shared entity load", "wikidata", id)
	}
	return v.(*Entity), nil
}

func (s *Store) load(ctx context.Context, id string) (e *Entity, err error) {
	_, span := tracing.StartSpan(ctx, "wikidata.load",
		trace.WithAttributes(attribute.String(tracing.AttrWikidataID, id)),
	)
	defer func() { tracing.EndWithError(span, err) }()

	path := s.Path(id)
	f, err := os.Open(path)
	if err != nil {
		return nil, core.MissingDocument(path, "wikidata", err)
	}
	defer f.Close()

	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, core.ParseFailure(path, err)
	}
	e, err = doc.Entity(id)
	if err != nil {
		return nil, core.ParseFailure(path, err)
	}

	s.cache.Add(id, e)
	monitoring.UpdateCacheSize(cacheType, s.cache.Len())
	return e, nil
}
