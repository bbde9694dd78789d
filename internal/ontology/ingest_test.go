package ontology

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngesterRun(t *testing.T) {
	stixPath := writeFixture(t, "attack.json", attackBundle)
	cwePath := writeFixture(t, "cwe.json", `[
	  {"id": "CWE-79", "name": "XSS", "parents": ["CWE-74"]},
	  {"id": "CWE-89", "name": "SQL Injection"}
	]`)

	m := graph.NewMemoryClient()
	ing := NewIngester(m, nil)

	report, err := ing.Run(context.Background(), []Source{
		{Path: stixPath, Kind: SourceSTIX, Framework: graph.FrameworkATTACK},
		{Path: cwePath, Kind: SourceCWE},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.RunID)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, 4, report.Sources[0].Nodes)
	assert.Equal(t, 2, report.Sources[1].Nodes)
	assert.Equal(t, report.Nodes, m.NodeCount())
}

func TestIngesterMergesNodeAcrossSources(t *testing.T) {
	attackPath := writeFixture(t, "attack.json", `{"objects": [
	  {
	    "type": "attack-pattern",
	    "id": "attack-pattern--atk",
	    "name": "Exploit Public-Facing Application",
	    "external_references": [
	      {"source_name": "mitre-attack", "external_id": "T1190"}
	    ]
	  }
	]}`)
	atlasPath := writeFixture(t, "atlas.json", `{"objects": [
	  {
	    "type": "attack-pattern",
	    "id": "attack-pattern--atl",
	    "name": "Exploit Public-Facing Application",
	    "external_references": [
	      {"source_name": "mitre-atlas", "external_id": "T1190"}
	    ]
	  }
	]}`)

	m := graph.NewMemoryClient()
	_, err := NewIngester(m, nil).Run(context.Background(), []Source{
		{Path: attackPath, Kind: SourceSTIX, Framework: graph.FrameworkATTACK},
		{Path: atlasPath, Kind: SourceSTIX, Framework: graph.FrameworkATLAS},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, m.NodeCount(), "the shared id merges to one node")
	n := m.GetNode("T1190")
	require.NotNil(t, n)
	assert.Equal(t, []graph.Framework{graph.FrameworkATLAS, graph.FrameworkATTACK},
		n.Frameworks, "framework tags union across sources")
}

func TestIngesterRerunIsIdempotent(t *testing.T) {
	cwePath := writeFixture(t, "cwe.json", `[
	  {"id": "CWE-79", "name": "XSS", "parents": ["CWE-74"]}
	]`)

	m := graph.NewMemoryClient()
	ing := NewIngester(m, nil)
	sources := []Source{{Path: cwePath, Kind: SourceCWE}}

	first, err := ing.Run(context.Background(), sources)
	require.NoError(t, err)
	second, err := ing.Run(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, 1, m.NodeCount(), "re-running the same sources never duplicates")
	assert.Equal(t, 1, m.EdgeCount())
	assert.NotEqual(t, first.RunID, second.RunID, "each run gets its own id")
}

func TestIngesterMissingFileIsRecoverable(t *testing.T) {
	m := graph.NewMemoryClient()
	ing := NewIngester(m, nil)

	report, err := ing.Run(context.Background(), []Source{
		{Path: "/nonexistent/attack.json", Kind: SourceSTIX, Framework: graph.FrameworkATTACK},
	})
	require.NoError(t, err, "a missing source is a no-op, not a failure")

	require.Len(t, report.Sources, 1)
	assert.True(t, report.Sources[0].Missing)
	assert.Equal(t, 0, report.Nodes)
}

func TestIngesterRejectsInvalidSource(t *testing.T) {
	ing := NewIngester(graph.NewMemoryClient(), nil)

	tests := []struct {
		name   string
		source Source
	}{
		{"empty path", Source{Kind: SourceCWE}},
		{"unknown kind", Source{Path: "x.json", Kind: "xml"}},
		{"stix without framework", Source{Path: "x.json", Kind: SourceSTIX}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ing.Run(context.Background(), []Source{tt.source})
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestIngesterMalformedSourceDoesNotAbortRun(t *testing.T) {
	brokenPath := writeFixture(t, "broken.json", "{{{")
	cwePath := writeFixture(t, "cwe.json", `[{"id": "CWE-79", "name": "XSS"}]`)

	m := graph.NewMemoryClient()
	report, err := NewIngester(m, nil).Run(context.Background(), []Source{
		{Path: brokenPath, Kind: SourceCWE},
		{Path: cwePath, Kind: SourceCWE},
	})
	require.NoError(t, err, "a bad source never aborts the run")

	require.Len(t, report.Sources, 2)
	assert.Contains(t, report.Sources[0].Error, string(types.MALFORMED_RECORD))
	assert.Empty(t, report.Sources[1].Error)
	assert.Equal(t, 1, m.NodeCount(), "the remaining sources still load")
}

func TestIngesterUnreadableSourceIsRecorded(t *testing.T) {
	cwePath := writeFixture(t, "cwe.json", `[{"id": "CWE-79", "name": "XSS"}]`)

	m := graph.NewMemoryClient()
	report, err := NewIngester(m, nil).Run(context.Background(), []Source{
		// A directory opens but cannot be read as a file.
		{Path: t.TempDir(), Kind: SourceCWE},
		{Path: cwePath, Kind: SourceCWE},
	})
	require.NoError(t, err)

	require.Len(t, report.Sources, 2)
	assert.Contains(t, report.Sources[0].Error, string(types.SOURCE_UNREADABLE))
	assert.Equal(t, 1, m.NodeCount())
}

// failingUpserts rejects every node write.
type failingUpserts struct {
	*graph.MemoryClient
}

func (failingUpserts) UpsertNode(ctx context.Context, n *graph.Node) error {
	return types.NewError(types.UPSERT_FAILED, "backend down")
}

func TestIngesterBackendFailureAbortsRun(t *testing.T) {
	cwePath := writeFixture(t, "cwe.json", `[{"id": "CWE-79", "name": "XSS"}]`)

	report, err := NewIngester(failingUpserts{graph.NewMemoryClient()}, nil).
		Run(context.Background(), []Source{
			{Path: cwePath, Kind: SourceCWE},
			{Path: cwePath, Kind: SourceCWE},
		})
	require.Error(t, err)
	assert.Equal(t, types.UPSERT_FAILED, types.CodeOf(err))
	assert.Len(t, report.Sources, 1, "backend failures stop the run with the partial report")
}

func TestIngesterUploadsRDFDocument(t *testing.T) {
	ttlPath := writeFixture(t, "d3fend.ttl",
		"@prefix d3f: <http://d3fend.mitre.org/ontologies/d3fend.owl#> .")

	var contentType, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
			contentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		io.WriteString(w, `{"head":{"vars":[]},"results":{"bindings":[]}}`)
	}))
	t.Cleanup(srv.Close)

	client, err := graph.NewSPARQLClient(graph.ClientConfig{
		URI:     srv.URL,
		Timeout: types.Duration(5 * time.Second),
	})
	require.NoError(t, err)

	report, err := NewIngester(client, nil).Run(context.Background(),
		[]Source{{Path: ttlPath, Kind: SourceRDF}})
	require.NoError(t, err)

	assert.Equal(t, "text/turtle", contentType)
	assert.Contains(t, body, "@prefix d3f:")
	require.Len(t, report.Sources, 1)
	assert.Empty(t, report.Sources[0].Error)
}

func TestIngesterRDFNeedsUploadCapableBackend(t *testing.T) {
	ttlPath := writeFixture(t, "d3fend.ttl", "@prefix : <urn:x> .")

	_, err := NewIngester(graph.NewMemoryClient(), nil).Run(context.Background(),
		[]Source{{Path: ttlPath, Kind: SourceRDF}})
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
}

func TestRDFContentType(t *testing.T) {
	assert.Equal(t, "text/turtle", rdfContentType("data/d3fend.ttl"))
	assert.Equal(t, "application/n-triples", rdfContentType("data/export.nt"))
	assert.Equal(t, "application/rdf+xml", rdfContentType("data/d3fend.owl"))
	assert.Equal(t, "text/turtle", rdfContentType("data/unknown"))
}
