// Command doge-fetch downloads DOGE API datasets to JSON, CSV or the
// dashboard's SQLite archive.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dogedash/internal/dogeapi"
)

var (
	baseURL  string
	apiKey   string
	retries  int
	timeout  time.Duration
	proxy    string
	perPage  int
	rps      float64
	format   string
	outDir   string
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "doge-fetch",
	Short: "Download DOGE API datasets",
	Long: `Download savings and payment data from the DOGE API.

Every page of an endpoint is retrieved and saved as JSON, CSV, or into the
SQLite archive the dashboard can serve from (DATA_SOURCE=sqlite).`,
	SilenceUsage: true,
}

var getCmd = &cobra.Command{
	Use:   "get <grants|contracts|leases|payments|statistics>",
	Short: "Download one dataset",
	Long: `Download one dataset.

The statistics endpoint carries three reports (agency, request_date and
org_names), each written to its own doge_statistics_<report>_data file.`,
	Example: `  doge-fetch get contracts --format csv
  doge-fetch get payments --format csv --output payment_data.csv
  doge-fetch get grants --format sqlite --db ./data/doge.db`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: endpointNames(),
	RunE:      runGet,
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Download the four datasets in parallel",
	Args:  cobra.NoArgs,
	RunE:  runAll,
}

var output string

func init() {
	defaultProxy := os.Getenv("HTTPS_PROXY")
	if defaultProxy == "" {
		defaultProxy = os.Getenv("HTTP_PROXY")
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&baseURL, "base-url", dogeapi.DefaultBaseURL, "API base URL")
	pf.StringVarP(&apiKey, "api-key", "k", os.Getenv("DOGE_API_KEY"), "API key for authentication (or set DOGE_API_KEY)")
	pf.IntVarP(&retries, "retries", "r", dogeapi.DefaultRetries, "Maximum retries for failed requests")
	pf.DurationVarP(&timeout, "timeout", "t", dogeapi.DefaultTimeout, "Per-request timeout")
	pf.StringVarP(&proxy, "proxy", "p", defaultProxy, "Proxy URL (default: HTTPS_PROXY/HTTP_PROXY)")
	pf.IntVar(&perPage, "per-page", dogeapi.DefaultPerPage, "Items requested per page")
	pf.Float64Var(&rps, "rps", 0, "Client-side request rate limit per second (0 = unlimited)")
	pf.StringVarP(&format, "format", "f", "json", "Output format: json, csv or sqlite")
	pf.StringVarP(&outDir, "dir", "d", ".", "Directory for default output file names")
	pf.StringVar(&dbPath, "db", "./data/doge.db", "SQLite archive path for --format sqlite")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	getCmd.Flags().StringVarP(&output, "output", "o", "", "Output file name (default: doge_<endpoint>_data.<format>)")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(allCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
