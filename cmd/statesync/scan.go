package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiml/probar-sub002/internal/config"
	"github.com/paiml/probar-sub002/internal/core"
	"github.com/paiml/probar-sub002/internal/report"
	"github.com/paiml/probar-sub002/internal/scanner"
)

// RunOptions scan/watch 共用的命令行参数
type RunOptions struct {
	Format      string
	Output      string
	Workers     int
	MinSeverity core.Severity
	Disable     []string
	Verbose     bool
	Color       bool
	Stats       bool

	minSeverity *severityValue
}

func (o *RunOptions) addFlags(cmd *cobra.Command) {
	o.minSeverity = newSeverityValue(&o.MinSeverity)
	cmd.Flags().StringVarP(&o.Format, "format", "f", "", "report format: text, json, sarif or all (default from config, then text)")
	cmd.Flags().StringVarP(&o.Output, "output", "o", "", "write the report to this file (stdout when empty)")
	cmd.Flags().IntVarP(&o.Workers, "workers", "j", 0, "number of files analysed concurrently (default from config)")
	cmd.Flags().Var(o.minSeverity, "min-severity", "lowest severity to report: info, warning or error")
	cmd.Flags().StringSliceVar(&o.Disable, "disable", nil, "rule codes to suppress, e.g. SS-006,SS-007")
	cmd.Flags().BoolVarP(&o.Verbose, "verbose", "v", false, "print fix suggestions in text output")
	cmd.Flags().BoolVar(&o.Color, "color", false, "colorize severities in text output")
	cmd.Flags().BoolVar(&o.Stats, "stats", false, "log per-detector timings at debug level")
}

// apply 命令行参数覆盖配置文件
func (o *RunOptions) apply(cfg *config.Config) error {
	if o.Format != "" {
		cfg.Output.Format = o.Format
	}
	if o.Workers > 0 {
		cfg.Scan.Workers = o.Workers
	}
	if o.minSeverity != nil && o.minSeverity.set {
		cfg.Scan.MinSeverity = o.MinSeverity.String()
	}
	if len(o.Disable) > 0 {
		cfg.Scan.DisabledRules = append(cfg.Scan.DisabledRules, o.Disable...)
	}
	return cfg.Validate()
}

func (o *RunOptions) newScanner(cfg *config.Config, extra ...scanner.Option) *scanner.Scanner {
	if o.Stats {
		extra = append(extra, scanner.WithMonitor(core.NewPerformanceMonitor(true)))
	}
	return scanner.FromConfig(cfg, Logger, extra...)
}

// NewScanCmd scan 子命令
func NewScanCmd() *cobra.Command {
	opts := &RunOptions{}
	cmd := &cobra.Command{
		Use:                   "scan [flags] <path>...",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Analyse Rust files or directories",
		Example:               "  statesync scan ./src\n  statesync scan --format sarif -o statesync.sarif .",
		Args:                  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(AppConfig); err != nil {
				return err
			}
			return runScan(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runScan(ctx context.Context, stdout io.Writer, opts *RunOptions, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s := opts.newScanner(AppConfig)

	start := time.Now()
	project, err := analyzePaths(ctx, s, paths)
	if err != nil {
		return err
	}
	result := &report.ScanResult{
		Report:   project,
		Root:     paths[0],
		Duration: time.Since(start),
		Version:  CoreVersion,
	}
	if err := writeReport(stdout, opts, result); err != nil {
		return err
	}
	if project.HasErrors() {
		return errFindings
	}
	return nil
}

// analyzePaths 依次分析每个参数（文件或目录）并合并
func analyzePaths(ctx context.Context, s *scanner.Scanner, paths []string) (*core.Report, error) {
	project := core.NewReport()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot analyse %s: %w", p, err)
		}
		if !info.IsDir() {
			project.Merge(s.AnalyzeFile(ctx, p))
			continue
		}
		rep, err := s.AnalyzeDir(ctx, p)
		if err != nil {
			return nil, err
		}
		project.Merge(rep)
	}
	return project, nil
}

func writeReport(stdout io.Writer, opts *RunOptions, result *report.ScanResult) error {
	format, err := report.ParseFormat(AppConfig.Output.Format)
	if err != nil {
		return err
	}

	managerOpts := []report.ManagerOption{report.WithFormat(format)}
	if opts.Color {
		managerOpts = append(managerOpts, report.WithColorText())
	}

	output := opts.Output
	if output == "" && format == report.FormatAll {
		output = AppConfig.Output.Dir
		if output == "" {
			output = "."
		}
		output = filepath.Join(output, report.ToolName+"_report")
	}
	if output == "" {
		m := report.NewManager(managerOpts...)
		if format == report.FormatText {
			var textOpts []report.TextOption
			if opts.Verbose {
				textOpts = append(textOpts, report.WithVerbose())
			}
			if opts.Color {
				textOpts = append(textOpts, report.WithColor())
			}
			return report.NewTextWriter(stdout, textOpts...).Write(result)
		}
		return m.WriteTo(stdout, result)
	}

	managerOpts = append(managerOpts,
		report.WithOutputDir(filepath.Dir(output)),
		report.WithFilename(filepath.Base(output)),
	)
	files, err := report.NewManager(managerOpts...).Generate(result)
	if err != nil {
		return err
	}
	for _, f := range files {
		Logger.Info("report written", "path", f)
	}
	return nil
}
