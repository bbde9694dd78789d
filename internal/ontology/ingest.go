package ontology

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// SourceKind identifies the document format of an ingestion source.
type SourceKind string

const (
	// SourceSTIX is a STIX-like bundle (ATT&CK, CAPEC, ATLAS).
	SourceSTIX SourceKind = "stix"

	// SourceCWE is a JSON array of parsed weakness records.
	SourceCWE SourceKind = "cwe"

	// SourceCWECategories is a JSON array of category records.
	SourceCWECategories SourceKind = "cwe-categories"

	// SourceRDF is a serialized triple document (e.g., the D3FEND Turtle
	// ontology) bulk-loaded into backends that accept RDF uploads.
	SourceRDF SourceKind = "rdf"
)

// Source is one configured ingestion input.
type Source struct {
	// Path is the document location on disk.
	Path string `yaml:"path"`

	// Kind selects the normalizer.
	Kind SourceKind `yaml:"kind"`

	// Framework tags nodes from STIX sources. Ignored for CWE and RDF
	// sources.
	Framework graph.Framework `yaml:"framework"`
}

// Validate checks if the source is well formed.
func (s Source) Validate() error {
	if s.Path == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "source path cannot be empty")
	}
	switch s.Kind {
	case SourceSTIX:
		if !s.Framework.IsValid() {
			return types.NewError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("stix source %s needs a valid framework tag", s.Path))
		}
	case SourceCWE, SourceCWECategories, SourceRDF:
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown source kind %q", s.Kind))
	}
	return nil
}

// SourceReport is the outcome of loading one source.
type SourceReport struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
	Skipped int    `json:"skipped"`

	// Missing is set when the source file did not exist. A missing source
	// is a recoverable no-op, not a failure.
	Missing bool `json:"missing,omitempty"`

	// Error is set when the source could not be read or parsed. A bad
	// source is skipped; the run continues with the remaining sources.
	Error string `json:"error,omitempty"`
}

// Report summarizes one ingestion run.
type Report struct {
	RunID   uuid.UUID      `json:"run_id"`
	Started time.Time      `json:"started"`
	Elapsed time.Duration  `json:"elapsed"`
	Sources []SourceReport `json:"sources"`
	Nodes   int            `json:"nodes"`
	Edges   int            `json:"edges"`
	Skipped int            `json:"skipped"`
}

// Ingester normalizes configured sources and loads them into a graph
// backend. Every load is a pure upsert: re-running the same sources yields
// identical node and edge counts.
type Ingester struct {
	client graph.GraphClient
	logger *slog.Logger
}

// NewIngester creates an Ingester over the given backend.
func NewIngester(client graph.GraphClient, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{client: client, logger: logger}
}

// Run loads every source in order. A missing, unreadable, or malformed
// source skips that source and is recorded on its report; only a backend
// failure aborts the run with the partial report.
func (i *Ingester) Run(ctx context.Context, sources []Source) (Report, error) {
	report := Report{
		RunID:   uuid.New(),
		Started: time.Now(),
	}

	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return report, err
		}
		srcReport, err := i.loadSource(ctx, src)
		report.Sources = append(report.Sources, srcReport)
		report.Nodes += srcReport.Nodes
		report.Edges += srcReport.Edges
		report.Skipped += srcReport.Skipped
		if err != nil {
			report.Elapsed = time.Since(report.Started)
			return report, err
		}
	}

	report.Elapsed = time.Since(report.Started)
	i.logger.Info("ingestion run complete",
		"run_id", report.RunID,
		"sources", len(report.Sources),
		"nodes", report.Nodes,
		"edges", report.Edges,
		"skipped", report.Skipped)
	return report, nil
}

func (i *Ingester) loadSource(ctx context.Context, src Source) (SourceReport, error) {
	srcReport := SourceReport{Path: src.Path, Kind: string(src.Kind)}

	data, err := os.ReadFile(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			i.logger.Warn("source file missing, skipping", "path", src.Path)
			srcReport.Missing = true
			return srcReport, nil
		}
		werr := types.WrapError(types.SOURCE_UNREADABLE,
			fmt.Sprintf("failed to read %s", src.Path), err)
		i.logger.Warn("source unreadable, skipping", "path", src.Path, "error", werr)
		srcReport.Error = werr.Error()
		return srcReport, nil
	}

	if src.Kind == SourceRDF {
		return i.uploadDocument(ctx, src, srcReport, data)
	}

	var batch Batch
	switch src.Kind {
	case SourceSTIX:
		batch, err = ParseSTIXBundle(data, src.Framework)
	case SourceCWE:
		batch, err = ParseWeaknessFile(data)
	case SourceCWECategories:
		batch, err = ParseCategoryFile(data)
	}
	if err != nil {
		i.logger.Warn("source malformed, skipping", "path", src.Path, "error", err)
		srcReport.Error = err.Error()
		return srcReport, nil
	}
	srcReport.Skipped = batch.Skipped

	for _, node := range batch.Nodes {
		if err := i.client.UpsertNode(ctx, node); err != nil {
			return srcReport, err
		}
		srcReport.Nodes++
	}
	for _, edge := range batch.Edges {
		if err := i.client.UpsertEdge(ctx, edge); err != nil {
			return srcReport, err
		}
		srcReport.Edges++
	}

	i.logger.Info("source loaded",
		"path", src.Path,
		"kind", src.Kind,
		"nodes", srcReport.Nodes,
		"edges", srcReport.Edges,
		"skipped", srcReport.Skipped)
	return srcReport, nil
}

// uploadDocument hands a whole triple document to the backend. RDF sources
// bypass the normalizer, so node and edge counts stay zero on the report.
func (i *Ingester) uploadDocument(ctx context.Context, src Source, srcReport SourceReport, data []byte) (SourceReport, error) {
	uploader, ok := i.client.(graph.DocumentUploader)
	if !ok {
		return srcReport, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("rdf source %s requires a backend that accepts document uploads", src.Path))
	}
	if err := uploader.UploadDocument(ctx, rdfContentType(src.Path), string(data)); err != nil {
		return srcReport, err
	}
	i.logger.Info("document uploaded", "path", src.Path, "bytes", len(data))
	return srcReport, nil
}

// rdfContentType maps a document extension onto its MIME type. Turtle is
// the default since that is how the D3FEND ontology ships.
func rdfContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nt":
		return "application/n-triples"
	case ".rdf", ".owl", ".xml":
		return "application/rdf+xml"
	default:
		return "text/turtle"
	}
}
