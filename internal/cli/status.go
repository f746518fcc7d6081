package cli

import (
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/embedding"

	"github.com/spf13/cobra"
)

type statusOutput struct {
	Store     string             `json:"store"`
	Index     string             `json:"index"`
	Connected bool               `json:"connected"`
	Error     string             `json:"error,omitempty"`
	Indexes   []common.IndexInfo `json:"indexes,omitempty"`
	Graph     bool               `json:"graph_exists"`
	Embedder  embedding.Status   `json:"embedder"`
}

// statusCmd reports connectivity, vector indexes, whether a graph exists and
// the selected embedder. It fails when the store is unreachable.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and embedder status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := statusOutput{Store: currentConfig.Store, Index: a.Store.Name()}

		cur, err := a.Embedders.Current(ctx)
		if err != nil {
			return err
		}
		out.Embedder = embedding.Validate(cur)

		if err := a.Store.TestConnection(ctx); err != nil {
			out.Error = err.Error()
			_ = printJSON(cmd, out)
			return err
		}
		out.Connected = true

		if out.Indexes, err = a.Store.ListVectorIndexes(ctx); err != nil {
			return err
		}
		if out.Graph, err = a.Store.GraphExists(ctx); err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
