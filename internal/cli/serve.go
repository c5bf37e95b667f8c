package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/config"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP resolve service",
	Long: `Expose the resolver over HTTP for chat-bot integrations.

Endpoints:
  POST /api/resolve  {"text": "..."}  resolve one message
  GET  /api/history  ?limit=&offset=  list past resolutions`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	r, cfg, err := newResolver()
	if err != nil {
		return err
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	history, err := server.OpenHistoryDB(filepath.Join(dir, "history.db"))
	if err != nil {
		return fmt.Errorf("failed to open history db: %w", err)
	}
	defer history.Close()

	fmt.Printf("Cache dir: %s\n", cfg.CacheDir)
	color.Green("Listening on %s", cfg.Listen)
	return server.New(r, history).Run(cfg.Listen)
}
