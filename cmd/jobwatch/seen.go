package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobwatch/internal/browse"
	"github.com/amishk599/jobwatch/internal/seenset"
)

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "Browse seen listings interactively (TUI)",
	Long:  "Shows the source picker, then a scrollable view of that source's seen listings. Read-only.",
	RunE:  runSeen,
}

func init() {
	rootCmd.AddCommand(seenCmd)
}

func runSeen(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	if len(cfg.Sources) == 0 {
		fmt.Println("No sources in config.")
		return nil
	}

	seen, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer seen.Close()

	items := make([]browse.SourceItem, len(cfg.Sources))
	for i, s := range cfg.Sources {
		items[i] = browse.SourceItem{Name: s.Name, Kind: s.Kind}
	}

	for {
		idx, err := browse.RunSourcePicker(items)
		if err != nil {
			return err
		}
		if idx < 0 {
			return nil
		}

		name := cfg.Sources[idx].Name
		set, err := browse.RunLoader(name, func(ctx context.Context) (*seenset.Set, error) {
			return seen.Load(ctx, name)
		})
		if errors.Is(err, browse.ErrCancelled) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading %s: %v\n", name, err)
			continue
		}

		quit, err := browse.RunSeenTUI(name, set)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}
