package cli

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/query"

	"github.com/spf13/cobra"
)

var (
	queryK      int
	queryLimit  int
	queryAnswer bool
	queryCypher bool
)

type queryOutput struct {
	query.Result
	Context string `json:"context"`
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Retrieve passages and neighbouring entities for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question is required")
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if queryCypher {
			ents := query.CapitalizedEntityExtractor{}.Extract([]string{question})
			cypher, err := a.CypherGenerator().Generate(ctx, question, ents)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cypher)
			return nil
		}

		if queryAnswer {
			ans, err := a.Answerer(ctx)
			if err != nil {
				return err
			}
			out, err := ans.Answer(ctx, question, queryK)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Answer)
			return nil
		}

		r, err := a.Retriever(ctx)
		if err != nil {
			return err
		}
		res := r.Retrieve(ctx, question, queryK)
		return printJSON(cmd, queryOutput{Result: res, Context: query.MergeContext(res, queryLimit)})
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", query.DefaultK, "number of passages to retrieve")
	queryCmd.Flags().IntVar(&queryLimit, "context-limit", query.DefaultContextLimit, "passages and entities kept in the merged context")
	queryCmd.Flags().BoolVar(&queryAnswer, "answer", false, "phrase an answer with the chat model")
	queryCmd.Flags().BoolVar(&queryCypher, "cypher", false, "print a read-only Cypher query instead of searching")

	rootCmd.AddCommand(queryCmd)
}
