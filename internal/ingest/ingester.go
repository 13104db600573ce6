package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/apppath"
	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/internal/storage"
)

// Result summarizes one ingest run.
type Result struct {
	RunID      string
	QueryFiles int
	Queries    int
	Gazetteers int
}

// Ingester loads an application's labeled query tree and gazetteers into
// storage. The source layout is
//
//	<app>/domains/<domain>/<intent>/<label set>.txt
//	<app>/entities/<entity type>/gazetteer.txt
type Ingester struct {
	appPath string
	store   storage.Storage
	logger  *zap.Logger
}

// NewIngester creates an ingester for the app rooted at appPath.
func NewIngester(appPath string, store storage.Storage, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{appPath: appPath, store: store, logger: logger}
}

// Run ingests all query files and gazetteers. Each (domain, intent,
// label set) branch is replaced wholesale, so removed lines disappear from
// storage too.
func (i *Ingester) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := i.logger.With(zap.String("run_id", res.RunID))
	logger.Info("ingesting application data", zap.String("app", i.appPath))

	if err := i.ingestQueries(ctx, logger, &res); err != nil {
		return res, err
	}
	if err := i.ingestGazetteers(ctx, logger, &res); err != nil {
		return res, err
	}

	logger.Info("ingest complete",
		zap.Int("query_files", res.QueryFiles),
		zap.Int("queries", res.Queries),
		zap.Int("gazetteers", res.Gazetteers))
	return res, nil
}

func (i *Ingester) ingestQueries(ctx context.Context, logger *zap.Logger, res *Result) error {
	root := apppath.DomainsDir(i.appPath)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			logger.Warn("skipping query file outside domain/intent layout",
				zap.String("path", rel))
			return nil
		}
		domain, intent := parts[0], parts[1]
		labelSet := strings.TrimSuffix(parts[2], ".txt")

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open query file: %w", err)
		}
		queries, err := ParseQueryFile(f, domain, intent)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", rel, err)
		}

		if err := i.store.ReplaceQueries(ctx, domain, intent, labelSet, queries); err != nil {
			return fmt.Errorf("store queries from %s: %w", rel, err)
		}
		logger.Debug("ingested query file",
			zap.String("domain", domain),
			zap.String("intent", intent),
			zap.String("label_set", labelSet),
			zap.Int("queries", len(queries)))
		res.QueryFiles++
		res.Queries += len(queries)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("no domains directory", zap.String("path", root))
			return nil
		}
		return err
	}
	return nil
}

func (i *Ingester) ingestGazetteers(ctx context.Context, logger *zap.Logger, res *Result) error {
	root := apppath.EntitiesDir(i.appPath)
	dirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		logger.Warn("no entities directory", zap.String("path", root))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read entities dir: %w", err)
	}

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		entityType := d.Name()
		path := filepath.Join(root, entityType, "gazetteer.txt")
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("open gazetteer: %w", err)
		}
		entries, err := ParseGazetteerFile(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse gazetteer for %s: %w", entityType, err)
		}

		gaz := &models.Gazetteer{Name: entityType, EntityType: entityType, Entries: entries}
		if err := i.store.SaveGazetteer(ctx, gaz); err != nil {
			return fmt.Errorf("store gazetteer %s: %w", entityType, err)
		}
		logger.Debug("ingested gazetteer",
			zap.String("entity_type", entityType),
			zap.Int("entries", len(entries)))
		res.Gazetteers++
	}
	return nil
}
