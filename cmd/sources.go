package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/grant-scraper/internal/config"
	"github.com/sells-group/grant-scraper/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered grant sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := source.NewDefaultRegistry(cfg.Sources.URLs())
		formatSources(os.Stdout, reg.All(), cfg.Sources)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func formatSources(out io.Writer, sources []source.Source, urls config.SourcesConfig) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tID\tBASE\tAGENCY\tURL")
	_, _ = fmt.Fprintln(w, "---\t--\t----\t------\t---")

	for _, s := range sources {
		d := s.Descriptor()
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			s.Key(),
			d.ID,
			d.IDBase,
			d.Agency,
			strings.Join(sourceURLs(s.Key(), urls), " "),
		)
	}
	_ = w.Flush()
}

// sourceURLs returns the entry pages configured for key.
func sourceURLs(key string, urls config.SourcesConfig) []string {
	switch key {
	case "phac":
		return []string{urls.PHAC.URL}
	case "kindred":
		return []string{urls.Kindred.URL}
	case "otf":
		return []string{urls.OTF.SeedURL, urls.OTF.GrowURL}
	default:
		return nil
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
