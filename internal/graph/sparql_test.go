package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

func sparqlResultsJSON(vars []string, bindings []map[string]sparqlTerm) string {
	var doc sparqlResponse
	doc.Head.Vars = vars
	doc.Results.Bindings = bindings
	raw, _ := json.Marshal(doc)
	return string(raw)
}

func newSPARQLTestClient(t *testing.T, handler http.HandlerFunc) *SPARQLClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewSPARQLClient(ClientConfig{URI: srv.URL, Timeout: types.Duration(5 * time.Second)})
	require.NoError(t, err)
	return client
}

func TestSPARQLQueryPattern(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))
		query := r.URL.Query().Get("query")
		assert.Contains(t, query, "dg:counters")

		w.Header().Set("Content-Type", "application/sparql-results+json")
		io.WriteString(w, sparqlResultsJSON(
			[]string{"attackLabel", "defensiveLabel", "defensiveID"},
			[]map[string]sparqlTerm{
				{
					"attackLabel":    {Type: "literal", Value: "Process Injection"},
					"defensiveLabel": {Type: "literal", Value: "Process Analysis"},
					"defensiveID":    {Type: "literal", Value: "D3-PA"},
				},
			}))
	})

	rows, err := client.QueryPattern(context.Background(), Intent{Pattern: PatternCountermeasures})
	require.NoError(t, err)

	require.Len(t, rows.Records, 1)
	assert.Equal(t, "Process Injection", rows.Records[0]["attackLabel"])
	assert.Equal(t, "D3-PA", rows.Records[0]["defensiveID"])
}

func TestSPARQLQueryPatternConvertsCounts(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sparqlResultsJSON(
			[]string{"tacticLabel", "techniqueCount"},
			[]map[string]sparqlTerm{
				{
					"tacticLabel":    {Type: "literal", Value: "Detect"},
					"techniqueCount": {Type: "literal", Value: "42"},
				},
			}))
	})

	rows, err := client.QueryPattern(context.Background(), Intent{Pattern: PatternTacticOverview})
	require.NoError(t, err)

	require.Len(t, rows.Records, 1)
	assert.Equal(t, 42, rows.Records[0]["techniqueCount"], "aggregate literals become ints")
}

func TestSPARQLUpsertNodePostsTriples(t *testing.T) {
	var captured string
	var contentType string
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			captured = string(body)
			contentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		io.WriteString(w, sparqlResultsJSON(nil, nil))
	})

	node := NewNode("T1566", "Phishing", FrameworkATTACK)
	require.NoError(t, client.UpsertNode(context.Background(), node))

	assert.Equal(t, "application/n-triples", contentType)
	assert.Contains(t, captured, `"T1566"`)
	assert.Contains(t, captured, `"Phishing"`)
}

func TestSPARQLUpsertNodeRejectsEmptyID(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid node")
	})

	err := client.UpsertNode(context.Background(), &Node{})
	require.Error(t, err)
	assert.Equal(t, types.UPSERT_FAILED, types.CodeOf(err))
}

func TestSPARQLServerErrorIsQueryFailed(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "MALFORMED QUERY", http.StatusBadRequest)
	})

	_, err := client.QueryPattern(context.Background(), Intent{Pattern: PatternFrameworkSearch})
	require.Error(t, err)
	assert.Equal(t, types.QUERY_FAILED, types.CodeOf(err))
}

func TestSPARQLUnreachableEndpoint(t *testing.T) {
	client, err := NewSPARQLClient(ClientConfig{
		URI:     "http://127.0.0.1:1/repositories/none",
		Timeout: types.Duration(500 * time.Millisecond),
	})
	require.NoError(t, err)

	connErr := client.Connect(context.Background())
	require.Error(t, connErr)
	assert.Equal(t, types.BACKEND_UNAVAILABLE, types.CodeOf(connErr))
	assert.True(t, types.IsRetryable(connErr))
}

func TestSPARQLTimeoutTranslated(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, sparqlResultsJSON(nil, nil))
	})
	client.http.Timeout = 50 * time.Millisecond

	_, err := client.QueryPattern(context.Background(), Intent{Pattern: PatternFrameworkSearch})
	require.Error(t, err)
	assert.Equal(t, types.TIMEOUT, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestSPARQLSetEmbeddingSendsUpdate(t *testing.T) {
	var captured string
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/statements"))
		assert.Equal(t, "application/sparql-update", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.SetEmbedding(context.Background(), "T1055", []float64{0.25, -1}))
	assert.Contains(t, captured, "DELETE WHERE")
	assert.Contains(t, captured, "INSERT DATA")
	assert.Contains(t, captured, "[0.25,-1]")
}

func TestSPARQLUploadDocument(t *testing.T) {
	var path, contentType, body string
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusNoContent)
	})

	doc := "@prefix d3f: <http://d3fend.mitre.org/ontologies/d3fend.owl#> ."
	require.NoError(t, client.UploadDocument(context.Background(), "text/turtle", doc))

	assert.True(t, strings.HasSuffix(path, "/statements"))
	assert.Equal(t, "text/turtle", contentType)
	assert.Equal(t, doc, body)
}

func TestSPARQLUploadDocumentServerError(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := client.UploadDocument(context.Background(), "text/turtle", "@prefix : <urn:x> .")
	require.Error(t, err)
	assert.Equal(t, types.UPSERT_FAILED, types.CodeOf(err))
}

func TestSPARQLBasicAuthForwarded(t *testing.T) {
	client := newSPARQLTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "reader", user)
		assert.Equal(t, "secret", pass)
		io.WriteString(w, sparqlResultsJSON(nil, nil))
	})
	client.config.Username = "reader"
	client.config.Password = "secret"

	_, err := client.QueryPattern(context.Background(), Intent{Pattern: PatternTacticOverview})
	require.NoError(t, err)
}
