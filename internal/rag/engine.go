// Package rag answers natural-language questions about the loaded
// taxonomies: embed the question, retrieve the most similar graph nodes,
// assemble a bounded context block, and synthesize an answer with a
// generation provider.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/embedder"
	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/index"
	"github.com/pauloribeiro16/D3fendGraph/internal/llm"
)

// DefaultTopK is the number of nodes retrieved per question.
const DefaultTopK = 10

const systemPrompt = "You are a cybersecurity analyst. Answer using only the " +
	"provided context from the D3FEND, ATT&CK, CWE, CAPEC, and ATLAS knowledge " +
	"bases. Cite technique and weakness identifiers where relevant. If the " +
	"context does not contain the answer, say so."

// Source is one retrieved node that informed an answer.
type Source struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Frameworks []string `json:"frameworks"`
	Similarity float64  `json:"similarity"`
}

// Answer is the result of one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Engine wires retrieval and synthesis together.
type Engine struct {
	client    graph.GraphClient
	embedder  embedder.Embedder
	generator llm.Generator
	logger    *slog.Logger

	// TopK is the retrieval depth. Zero uses DefaultTopK.
	TopK int
}

// NewEngine creates a retrieval-augmented answer engine.
func NewEngine(client graph.GraphClient, emb embedder.Embedder, gen llm.Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:    client,
		embedder:  emb,
		generator: gen,
		logger:    logger,
	}
}

// Ask answers a question against the loaded graph. A generation failure or
// timeout fails the whole request; no partial answer with sources is
// returned. An empty graph yields an answer stating nothing was retrieved.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question cannot be empty")
	}

	start := time.Now()
	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, err
	}

	candidates, err := e.client.ScanEmbedded(ctx)
	if err != nil {
		return Answer{}, err
	}

	k := e.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	matches := index.TopK(queryVec, candidates, k)

	prompt := buildPrompt(question, matches)
	answer, err := e.generator.Generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		e.logger.Error("answer synthesis failed",
			"question", question,
			"error", err)
		return Answer{}, err
	}

	sources := make([]Source, len(matches))
	for i, m := range matches {
		tags := make([]string, len(m.Node.Frameworks))
		for j, fw := range m.Node.Frameworks {
			tags[j] = string(fw)
		}
		sources[i] = Source{
			ID:         m.Node.ID,
			Label:      m.Node.Label,
			Frameworks: tags,
			Similarity: roundSimilarity(m.Score),
		}
	}

	e.logger.Debug("question answered",
		"sources", len(sources),
		"elapsed", time.Since(start))
	return Answer{Answer: answer, Sources: sources}, nil
}

func buildPrompt(question string, matches []index.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf(
			"No knowledge-base entries were retrieved for this question.\n\nQuestion: %s",
			question)
	}
	return fmt.Sprintf("Context:\n%s\nQuestion: %s", FormatContext(matches), question)
}

// roundSimilarity rounds a similarity score to four decimal places for
// presentation.
func roundSimilarity(s float64) float64 {
	return math.Round(s*10000) / 10000
}
