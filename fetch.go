package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"shortcut-panel/config"
	"shortcut-panel/shortcut"
)

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	data := newDataManager(cfg)
	defer data.Destroy()

	res, err := data.Load(cmd.Context(), true)
	if err != nil {
		return err
	}
	if fetchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printGroups(cmd.OutOrStdout(), res.Groups)
	return nil
}

func printGroups(w io.Writer, groups []shortcut.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "no shortcuts")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%d)\n", g.Name, len(g.Shortcuts))
		for _, s := range g.Shortcuts {
			fmt.Fprintf(w, "  %-24s %s\n", s.Name, firstLine(s.Prompt))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
