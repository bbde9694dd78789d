package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pauloribeiro16/D3fendGraph/internal/embedder"
	"github.com/pauloribeiro16/D3fendGraph/internal/llm"
	"github.com/pauloribeiro16/D3fendGraph/internal/rag"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a natural-language question against the loaded graph",
	Long: `Embeds the question, retrieves the most similar graph nodes, and
synthesizes an answer with the configured generation provider. The output
is a JSON object with the answer text and the source nodes that informed
it, each with its similarity score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	ctx := cmd.Context()
	client, err := connectGraph(ctx)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return err
	}
	gen, err := llm.New(cfg.Generator)
	if err != nil {
		return err
	}

	engine := rag.NewEngine(client, emb, gen, logger)
	engine.TopK = askTopK

	answer, err := engine.Ask(ctx, question)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k",
		rag.DefaultTopK, "Number of nodes retrieved as context")
}
