package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/catalog"
	"github.com/jmylchreest/cuedeck/internal/model"
	"github.com/jmylchreest/cuedeck/internal/output"
)

var listOpts struct {
	format   string
	template string
	search   string
	descLen  int
	noIndex  bool
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cues in the data directory",
	Long: `List the cues in the data directory.

The index printed for each cue can be passed to play and delete.

Examples:
  # Table of cues
  cuedeck list

  # Cues matching a term, as JSON
  cuedeck list --search applause --format json

  # Pick a cue with a launcher and play it
  cuedeck list -f dmenu | fuzzel -d | xargs -r -d '\n' cuedeck play`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, dmenu)")
	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Custom Go template for plain/dmenu output")
	listCmd.Flags().StringVarP(&listOpts.search, "search", "s", "",
		"Only show cues whose name or description contains this term")
	listCmd.Flags().IntVar(&listOpts.descLen, "desc-len", 60,
		"Maximum description length (0=unlimited)")
	listCmd.Flags().BoolVar(&listOpts.noIndex, "no-index", false,
		"Omit the index column")
}

func runList(cmd *cobra.Command, args []string) error {
	format := output.FormatType(strings.ToLower(listOpts.format))
	if !slices.Contains(output.Formats, format) {
		return fmt.Errorf("unknown format %q", listOpts.format)
	}

	c, err := loadCatalog()
	if err != nil {
		return err
	}
	defer c.Close()

	entries := output.NewEntries(c.Existing())
	if listOpts.search != "" {
		entries = filterEntries(entries, listOpts.search)
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = listOpts.template
	opts.DescLen = listOpts.descLen
	opts.ShowIndex = !listOpts.noIndex

	return output.NewFormatter(format, opts).Format(os.Stdout, entries)
}

// filterEntries keeps the matching entries with their original indices.
func filterEntries(entries []output.Entry, term string) []output.Entry {
	var result []output.Entry
	for _, e := range entries {
		if len(catalog.Search([]model.Cue{e.Cue}, term)) > 0 {
			result = append(result, e)
		}
	}
	return result
}
