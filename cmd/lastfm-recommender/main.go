package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lastfm-recommender",
		Short: "Rank your recent listening history into song recommendations",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(fetchCmd())
	root.AddCommand(recommendCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func fetchCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch scrobbles from configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to fetch (e.g., lastfm,feed,file)")
	return cmd
}

func recommendCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		days       int
		xlsxPath   string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recompute and show ranked song recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(jsonOutput, limit, days, xlsxPath)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 25, "max songs to show")
	cmd.Flags().IntVar(&days, "days", 0, "trailing window in days (default: from config)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the full list to an XLSX file")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
