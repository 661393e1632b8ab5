package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fangwenqi/rally/pkg/assets"
	"github.com/fangwenqi/rally/pkg/config"
	"github.com/fangwenqi/rally/pkg/logger"
	"github.com/fangwenqi/rally/pkg/models"
	"github.com/fangwenqi/rally/pkg/renderer"
	"github.com/fangwenqi/rally/pkg/report"
	"github.com/fangwenqi/rally/pkg/server"
	"github.com/fangwenqi/rally/pkg/storage"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	var rootCmd = &cobra.Command{
		Use:   "rally-report",
		Short: "Verification report toolkit",
		Long: `Verification report toolkit

Aggregates stored verification runs and exports them as JSON or HTML reports,
imports run results, and serves reports over HTTP.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	var reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Generate a report from verification runs",
		Long: `Generate a report from stored verification runs or from a results file.

Without --to the report is printed to stdout; with --to it is written to the
given file. Multiple --uuid flags compare the runs side by side, durations
measured against the first one.`,
		RunE: runReport,
	}

	var importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import verification run results into the store",
		RunE:  runImport,
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored verification runs",
		RunE:  runList,
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the report server",
		RunE:  runServe,
	}

	reportCmd.Flags().StringSliceP("uuid", "u", nil, "UUIDs of stored runs to report on, in comparison order")
	reportCmd.Flags().StringP("file", "f", "", "Results file to report on instead of stored runs")
	reportCmd.Flags().StringP("type", "t", report.FormatJSON, "Report format (json, html, html-static)")
	reportCmd.Flags().StringP("to", "o", "", "Output destination; omit to print to stdout")

	importCmd.Flags().StringP("file", "f", "", "Results file to import (required)")

	listCmd.Flags().IntP("limit", "l", 20, "Maximum number of runs to list")

	serveCmd.Flags().StringP("host", "H", cfg.ServerHost, "Host to bind the server to")
	serveCmd.Flags().IntP("port", "p", cfg.ServerPort, "Port to run the server on")

	rootCmd.AddCommand(reportCmd, importCmd, listCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	uuids, _ := cmd.Flags().GetStringSlice("uuid")
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("type")
	destination, _ := cmd.Flags().GetString("to")

	var runs []*models.VerificationRun
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read results file: %w", err)
		}
		runs, err = models.DecodeRuns(data)
		if err != nil {
			return err
		}
	case len(uuids) > 0:
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err = db.GetVerifications(uuids)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --uuid or --file is required")
	}

	registry := report.DefaultRegistry(renderer.New(), reporterConfig())
	reporter, err := registry.Create(format, runs, destination)
	if err != nil {
		return err
	}

	out, err := reporter.Generate()
	if err != nil {
		return err
	}
	return writeOutput(out, format)
}

// writeOutput applies the reporter output contract: print the payload when no
// destination was given, otherwise write the files and surface the open hint.
func writeOutput(out *report.Output, format string) error {
	if out.Files == nil {
		fmt.Println(out.Print)
		return nil
	}

	for destination, payload := range out.Files {
		dir := filepath.Dir(destination)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(destination, []byte(payload), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	// A plain html report references its stylesheet and script externally, so
	// they have to sit next to it.
	if format == report.FormatHTML {
		manager := assets.NewManager(cfg.ThemePath)
		if err := manager.CopyAssets(filepath.Dir(out.Open)); err != nil {
			logger.Warnf("Failed to copy report assets: %v", err)
		}
	}

	logger.Infof("Report saved, open: %s", out.Open)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return fmt.Errorf("--file is required")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read results file: %w", err)
	}
	runs, err := models.DecodeRuns(data)
	if err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, run := range runs {
		if run.UUID == "" {
			run.UUID = uuid.NewString()
		}
		if err := db.SaveVerification(run); err != nil {
			return err
		}
		logger.Infof("Imported verification %s (%d tests)", run.UUID, run.TestsCount)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRecent(limit)
	if err != nil {
		return err
	}

	for _, run := range runs {
		fmt.Printf("%s  %-10s %4d tests  %8.2fs  started %s\n",
			run.UUID, run.Status, run.TestsCount, run.TestsDuration,
			run.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	registry := report.DefaultRegistry(renderer.New(), reporterConfig())
	srv := server.NewServer(&server.Config{
		Host:       host,
		Port:       port,
		ReportsDir: cfg.ReportsDir,
	}, db, registry)

	return srv.Start()
}

func openDatabase() (*storage.Database, error) {
	return storage.NewDatabase(cfg.DataDir)
}

func reporterConfig() report.Config {
	return report.Config{
		TrackerHost:    cfg.TrackerHost,
		JSONTimeFormat: cfg.JSONTimeFormat,
		HTMLTimeFormat: cfg.HTMLTimeFormat,
	}
}
