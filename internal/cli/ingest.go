package cli

import (
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"github.com/spf13/cobra"
)

var (
	ingestSimilarity string
	ingestGraph      bool
)

// ingestCmd embeds a stored series and writes it to the vector index.
var ingestCmd = &cobra.Command{
	Use:   "ingest <series>",
	Short: "Embed and index a stored series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := store.ParseSimilarity(ingestSimilarity)
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		p, err := a.Pipeline()
		if err != nil {
			return err
		}
		res, err := p.IngestFromSource(cmd.Context(), args[0], sim)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, res); err != nil {
			return err
		}
		if !ingestGraph {
			return nil
		}
		return buildGraph(cmd, args[0])
	},
}

var buildKGCmd = &cobra.Command{
	Use:   "build-kg <series>",
	Short: "Extract triplets from a stored series into the entity graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildGraph(cmd, args[0])
	},
}

func buildGraph(cmd *cobra.Command, seriesID string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	b, err := a.Builder()
	if err != nil {
		return err
	}
	res, err := b.BuildFromSeries(cmd.Context(), seriesID)
	if err != nil {
		return fmt.Errorf("graph build for %s failed: %w", seriesID, err)
	}
	return printJSON(cmd, res)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSimilarity, "similarity", "", "cosine, euclidean or dotproduct (default VECTOR_SIMILARITY or cosine)")
	ingestCmd.Flags().BoolVar(&ingestGraph, "graph", false, "also build the entity graph")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(buildKGCmd)
}
