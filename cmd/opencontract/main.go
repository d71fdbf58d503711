package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/diff"
	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
	"github.com/PentesterFlow/OpenContract/internal/mockserver"
	"github.com/PentesterFlow/OpenContract/internal/shutdown"
	"github.com/PentesterFlow/OpenContract/internal/watch"
	"github.com/PentesterFlow/OpenContract/pkg/workflow"
)

var (
	version = "1.0.0"

	// Global flags
	configFile     string
	projectRoot    string
	outputDir      string
	verbose        bool
	jsonLogs       bool
	strictMode     bool
	failOnBreaking bool
	interactive    bool
	authMode       string
	mockStrategy   string
	projectName    string
	scopes         []string
	entryHints     []string
	history        bool

	// Command flags
	scanFile   string
	againstID  string
	serveAddr  string
	latency    time.Duration
	rateLimit  float64
	seed       int64
	debounce   time.Duration
	historyMax int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "opencontract",
		Short: "OpenContract - API contract inference for frontend projects",
		Long: `OpenContract - Infers an API contract from the HTTP calls a frontend project makes.

Scans source files for request call sites, builds a normalized contract, renders
OpenAPI and Markdown documentation plus MSW mock handlers, cross-checks the
artifacts and reports contract changes between runs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the project for API call sites",
		RunE:  runScan,
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the contract from a saved scan result",
		RunE:  runBuild,
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Render documentation and mock handlers from the contract",
		RunE:  runGenerate,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Cross-check the contract, OpenAPI document and mock handlers",
		RunE:  runCheck,
	}

	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Classify changes between the previous and current contract",
		RunE:  runDiff,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		RunE:  runAll,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the pipeline whenever source files change",
		RunE:  runWatch,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the contract as a mock HTTP API",
		RunE:  runServe,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List stored contract snapshots",
		RunE:  runHistory,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	pf.StringVarP(&projectRoot, "project", "p", ".", "Project root to scan")
	pf.StringVarP(&outputDir, "output", "o", "", "Output directory (default: project root)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	pf.BoolVar(&strictMode, "strict", false, "Fail when the consistency check finds issues")
	pf.BoolVar(&failOnBreaking, "fail-on-breaking", false, "Fail when breaking changes are detected")
	pf.BoolVarP(&interactive, "interactive", "i", false, "Confirm the contract before rendering")
	pf.StringVar(&authMode, "auth-mode", "", "Auth mode (bearer, cookie, custom, none)")
	pf.StringVar(&mockStrategy, "mock-strategy", "", "Mock strategy (success, error, random)")
	pf.StringVar(&projectName, "name", "", "Project name used in generated documents")
	pf.StringArrayVar(&scopes, "scope", nil, "Restrict the scan to a root-relative directory")
	pf.StringArrayVar(&entryHints, "entry", nil, "Extra API wrapper directory")
	pf.BoolVar(&history, "history", false, "Store each contract in the history database")

	buildCmd.Flags().StringVar(&scanFile, "scan", "", "Scan result file (default: <output>/scan_result.json)")
	diffCmd.Flags().StringVar(&againstID, "against", "", "Compare against a stored history snapshot instead of the previous contract")
	watchCmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a re-run")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address")
	serveCmd.Flags().DurationVar(&latency, "latency", 0, "Artificial response latency")
	serveCmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Requests per second (0 = unlimited)")
	serveCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for the random mock strategy")
	historyCmd.Flags().IntVarP(&historyMax, "limit", "n", 20, "Number of entries to show")

	rootCmd.AddCommand(scanCmd, buildCmd, generateCmd, checkCmd, diffCmd, runCmd, watchCmd, serveCmd, historyCmd)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(errors.ExitCode(err))
}

// setup loads configuration, applies flags and returns a workflow bound to a
// signal-aware context.
func setup(cmd *cobra.Command) (*workflow.Workflow, *shutdown.Handler, *logger.Logger, error) {
	flags := cmd.Flags()
	var root string
	if flags.Changed("project") {
		root = projectRoot
	}
	cfg, err := workflow.LoadWithRoot(configFile, root)
	if err != nil {
		return nil, nil, nil, errors.NewFatalError("config", configFile, "failed to load configuration", err)
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = projectRoot
	}
	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("strict") {
		cfg.StrictMode = strictMode
	}
	if flags.Changed("fail-on-breaking") {
		cfg.FailOnBreaking = failOnBreaking
	}
	if flags.Changed("auth-mode") {
		cfg.AuthMode = authMode
	}
	if flags.Changed("mock-strategy") {
		cfg.MockStrategy = mockStrategy
	}
	if flags.Changed("name") {
		cfg.ProjectName = projectName
	}
	if flags.Changed("history") {
		cfg.History.Enabled = history
	}
	cfg.Scope = append(cfg.Scope, scopes...)
	cfg.EntryHints = append(cfg.EntryHints, entryHints...)

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.InfoLevel
	}
	if verbose {
		level = logger.DebugLevel
	}
	log := logger.New(logger.Config{
		Level:     level,
		Pretty:    !jsonLogs,
		Component: "opencontract",
	})
	logger.SetGlobal(log)

	opts := []workflow.Option{workflow.WithConfig(cfg), workflow.WithLogger(log)}
	if interactive || cfg.Interactive {
		opts = append(opts, workflow.WithInteractive(os.Stdin, os.Stderr))
	}
	w, err := workflow.New(opts...)
	if err != nil {
		return nil, nil, nil, errors.NewFatalError("config", cfg.ProjectRoot, "invalid configuration", err)
	}

	metrics.SetGlobal(w.Metrics())

	h := shutdown.New(context.Background(), shutdown.Config{Logger: log})
	return w, h, log, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	res, err := w.Scan(h.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Framework:    %s\n", res.Framework)
	fmt.Printf("Base URL:     %s\n", orNone(res.BaseURL))
	fmt.Printf("Call sites:   %d\n", len(res.Matches))
	fmt.Printf("Skipped:      %d\n", len(res.Skipped))
	fmt.Printf("Written:      %s\n", w.Config().Path(workflow.ScanResultFile))
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	snap, err := w.BuildFromFile(scanFile)
	if err != nil {
		return err
	}
	printContract(snap, w.Snapshots().CurrentPath())
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	written, err := w.GenerateFromFile()
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Println(path)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	report, err := w.Check()
	if err != nil {
		return err
	}
	fmt.Printf("Errors:   %d\n", len(report.Errors()))
	fmt.Printf("Warnings: %d\n", len(report.Warnings()))
	fmt.Printf("Report:   %s\n", w.Config().Path(workflow.ConsistencyReportFile))

	strict := w.Config().StrictMode
	if code := report.ExitCode(strict); code != errors.ExitOK {
		return errors.NewPolicyError(workflow.StageCheck,
			fmt.Sprintf("%d consistency issues in strict mode", report.Total()), code)
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	var d *diff.Report
	if againstID != "" {
		d, err = w.DiffAgainst(againstID)
	} else {
		d, err = w.DiffFiles()
	}
	if err != nil {
		return err
	}

	fmt.Printf("Added:     %d\n", d.Added())
	fmt.Printf("Modified:  %d\n", d.Modified())
	fmt.Printf("Removed:   %d\n", d.Removed())
	fmt.Printf("Unchanged: %d\n", d.Unchanged())
	fmt.Printf("Breaking:  %d\n", len(d.Breaking()))
	fmt.Printf("Report:    %s\n", w.Config().Path(workflow.DiffReportFile))
	for _, rec := range d.Breaking() {
		fmt.Printf("  [%s] %s: %s\n", rec.Method, rec.Path, rec.Reason)
	}

	if code := d.ExitCode(w.Config().FailOnBreaking); code != errors.ExitOK {
		return errors.NewPolicyError(workflow.StageDiff,
			fmt.Sprintf("%d breaking changes", len(d.Breaking())), code)
	}
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	start := time.Now()
	res, err := w.Run(h.Context())
	if res != nil && res.Snapshot != nil {
		printSummary(res, time.Since(start))
	}
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	w, h, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	cfg := w.Config()
	watcher := watch.New(cfg.ProjectRoot, watch.Options{
		Policy:   cfg.Scan,
		Exclude:  w.Excludes(),
		Debounce: debounce,
		Logger:   log,
	})

	run := func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			log.WithField("files", len(changed)).Info("change detected, re-running")
		}
		res, err := w.Run(ctx)
		if err != nil {
			if errors.IsCancelled(err) {
				return err
			}
			log.WithError(err).Warn("run failed; waiting for the next change")
			return nil
		}
		printSummary(res, 0)
		return nil
	}

	if err := run(h.Context(), nil); err != nil {
		return err
	}
	err = watcher.Run(h.Context(), run)
	if h.Interrupted() {
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	w, h, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	path := w.Snapshots().CurrentPath()
	snap, err := contract.Load(path)
	if err != nil {
		return errors.Categorize(err, "serve", path)
	}

	cfg := w.Config().Serve
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = serveAddr
	}
	if flags.Changed("latency") {
		cfg.Latency = latency
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = rateLimit
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}

	srv := mockserver.New(snap, cfg, log, w.Metrics())
	fmt.Printf("Serving %d endpoints on http://%s\n", srv.Routes(), cfg.Addr)
	if err := srv.ListenAndServe(h.Context()); err != nil {
		return errors.NewFatalError("serve", cfg.Addr, "mock server failed", err)
	}
	fmt.Println(w.Metrics().Snapshot().Summary())
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	w, h, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	entries, err := w.History()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No snapshots stored")
		return nil
	}
	if historyMax > 0 && len(entries) > historyMax {
		entries = entries[len(entries)-historyMax:]
	}

	fmt.Printf("%-36s  %-20s  %9s  %8s\n", "ID", "CREATED", "ENDPOINTS", "BREAKING")
	for _, e := range entries {
		fmt.Printf("%-36s  %-20s  %9d  %8d\n", e.ID, e.CreatedAt.Format(time.RFC3339), e.TotalEndpoints, e.Breaking)
	}
	return nil
}

func printContract(snap *contract.Snapshot, path string) {
	fmt.Printf("Endpoints:   %d\n", snap.Meta.TotalEndpoints)
	fmt.Printf("Unresolved:  %d\n", snap.Meta.TotalUnresolved)
	fmt.Printf("Modules:     %s\n", strings.Join(snap.Modules(), ", "))
	fmt.Printf("Written:     %s\n", path)
}

func printSummary(res *workflow.Result, duration time.Duration) {
	fmt.Println()
	fmt.Println("==============================================================")
	fmt.Println("                      Contract Summary")
	fmt.Println("==============================================================")
	fmt.Println()
	if duration > 0 {
		fmt.Printf("Duration:       %v\n", duration.Round(time.Millisecond))
	}
	if res.Scan != nil {
		fmt.Printf("Call sites:     %d\n", len(res.Scan.Matches))
	}
	fmt.Printf("Endpoints:      %d\n", res.Snapshot.Meta.TotalEndpoints)
	fmt.Printf("Unresolved:     %d\n", res.Snapshot.Meta.TotalUnresolved)
	fmt.Printf("Artifacts:      %d\n", len(res.Artifacts))
	if res.Consistency != nil {
		fmt.Printf("Check errors:   %d\n", len(res.Consistency.Errors()))
		fmt.Printf("Check warnings: %d\n", len(res.Consistency.Warnings()))
	}
	if res.Diff != nil {
		fmt.Printf("Changes:        %d added, %d modified, %d removed\n",
			res.Diff.Added(), res.Diff.Modified(), res.Diff.Removed())
		fmt.Printf("Breaking:       %d\n", len(res.Diff.Breaking()))
	}
	if res.History != nil {
		fmt.Printf("Snapshot:       %s\n", res.History.ID)
	}
	fmt.Println()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
