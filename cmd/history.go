package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/staff-clock/internal/backend"
	"github.com/kozaktomas/staff-clock/internal/config"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the latest clock events of the employee",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client, err := backend.NewClient(cfg.Backend.URL, cfg.Backend.Token)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := client.History(ctx)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No clock events recorded")
		return nil
	}
	fmt.Printf("%-6s  %-13s  %-19s  %-22s  %s\n", "ID", "TYPE", "TIME", "POSITION", "VERIFIED")
	for _, e := range entries {
		verified := "no"
		if e.Verified {
			verified = "yes"
		}
		fmt.Printf("%-6d  %-13s  %-19s  %-22s  %s\n",
			e.ID, e.EventType, e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.5f,%.5f", e.Lat, e.Lng), verified)
	}
	return nil
}
