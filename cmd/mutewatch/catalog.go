package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/mutewatch/internal/catalog"
)

var catalogOpts struct {
	json bool
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [name...]",
	Short: "Show the media process catalog",
	Long: `Show the executables that count as media producers, grouped by category.

With arguments, report whether each name is in the catalog instead. Names
match exactly, ignoring case.`,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().BoolVar(&catalogOpts.json, "json", false, "Output JSON")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return lookupNames(os.Stdout, c, args)
	}

	if catalogOpts.json {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(c.Groups())
	}

	source := "built-in"
	if cfg.Catalog.Path != "" {
		source = cfg.Catalog.Path
	}
	fmt.Printf("catalog: %s (%s)\n", source, english.Plural(c.Len(), "entry", "entries"))
	for _, cat := range catalog.ValidCategories() {
		names := c.Names(cat)
		if len(names) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n  %s\n", cat, strings.Join(names, "\n  "))
	}
	return nil
}

func lookupNames(w io.Writer, c *catalog.Catalog, names []string) error {
	type match struct {
		Name     string           `json:"name"`
		Match    bool             `json:"match"`
		Category catalog.Category `json:"category,omitempty"`
	}
	matches := make([]match, 0, len(names))
	for _, n := range names {
		cat, ok := c.Category(n)
		matches = append(matches, match{Name: n, Match: ok, Category: cat})
	}

	if catalogOpts.json {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(matches)
	}
	for _, m := range matches {
		if m.Match {
			fmt.Fprintf(w, "%s: %s\n", m.Name, m.Category)
		} else {
			fmt.Fprintf(w, "%s: not in catalog\n", m.Name)
		}
	}
	return nil
}
