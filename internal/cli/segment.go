package cli

import (
	"fmt"
	"path/filepath"

	"github.com/OFFIS-RIT/graphrag/pkg/loader"
	lio "github.com/OFFIS-RIT/graphrag/pkg/loader/io"
	"github.com/OFFIS-RIT/graphrag/pkg/segment"

	"github.com/spf13/cobra"
)

var (
	segStrategy string
	segSeries   string
	segLimit    int
	segMaxSize  int

	previewStrategies []string
)

// segmentCmd splits an extracted text file and optionally stores the chunks
// as a series.
var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Split a text file into chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := segment.ParseStrategy(segStrategy)
		if err != nil {
			return err
		}
		seg, err := segment.NewSegmenter(currentConfig.SegmenterParams())
		if err != nil {
			return err
		}

		file := loader.GraphFile{ID: filepath.Base(args[0]), FilePath: args[0], Loader: lio.NewIOGraphFileLoader()}
		chunks, err := seg.SegmentFile(cmd.Context(), file, strategy)
		if err != nil {
			return err
		}

		if segSeries != "" {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			files, err := a.Series.SaveSeries(cmd.Context(), segSeries, chunks)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %d chunks to series %s\n", len(files), segSeries)
		}
		return printJSON(cmd, segment.BuildMetadata(chunks, args[0], segLimit, segMaxSize))
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Compare chunk counts and sizes across strategies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, err := segment.NewSegmenter(currentConfig.SegmenterParams())
		if err != nil {
			return err
		}
		file := loader.GraphFile{ID: filepath.Base(args[0]), FilePath: args[0], Loader: lio.NewIOGraphFileLoader()}
		text, err := file.GetText(cmd.Context())
		if err != nil {
			return err
		}

		var strategies []segment.Strategy
		for _, name := range previewStrategies {
			s, err := segment.ParseStrategy(name)
			if err != nil {
				return err
			}
			strategies = append(strategies, s)
		}

		type previewOutput struct {
			Suggested segment.Strategy                   `json:"suggested"`
			Stats     map[segment.Strategy]segment.Stats `json:"stats"`
		}
		return printJSON(cmd, previewOutput{
			Suggested: segment.Suggest(string(text)),
			Stats:     seg.Preview(string(text), strategies...),
		})
	},
}

func init() {
	segmentCmd.Flags().StringVarP(&segStrategy, "strategy", "s", string(segment.StrategyRecursive), "character, sentence, paragraph, line, recursive or token")
	segmentCmd.Flags().StringVar(&segSeries, "series", "", "store the chunks under this series id")
	segmentCmd.Flags().IntVar(&segLimit, "limit", 0, "print at most this many chunks (0 = all)")
	segmentCmd.Flags().IntVar(&segMaxSize, "max-size", 0, "stop printing after this many characters (0 = no cap)")

	previewCmd.Flags().StringSliceVar(&previewStrategies, "strategies", nil, "strategies to compare (default all character based)")

	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(previewCmd)
}
