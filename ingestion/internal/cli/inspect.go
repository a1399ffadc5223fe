package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/dataprep/ingestion/internal/dataset"
)

type InspectCmd struct{}

func NewInspectCmd() *InspectCmd {
	return &InspectCmd{}
}

func (c *InspectCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the columns and row counts of CSV artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets := make([]*dataset.Dataset, 0, len(args))
			for _, path := range args {
				ds, err := dataset.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				datasets = append(datasets, ds)
			}
			printInspectTable(cmd.OutOrStdout(), args, datasets)
			return nil
		},
	}
}

func printInspectTable(w io.Writer, paths []string, datasets []*dataset.Dataset) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{"File", "Columns", "Rows"})

	for i, ds := range datasets {
		table.Append([]string{
			paths[i],
			strings.Join(ds.Header, ", "),
			strconv.Itoa(ds.Len()),
		})
	}
	table.Render()
}
