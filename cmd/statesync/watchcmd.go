package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiml/probar-sub002/internal/core"
	"github.com/paiml/probar-sub002/internal/report"
	"github.com/paiml/probar-sub002/internal/scanner"
	"github.com/paiml/probar-sub002/internal/watch"
)

// NewWatchCmd watch 子命令：首次完整分析，之后源文件变更时重新分析
func NewWatchCmd() *cobra.Command {
	opts := &RunOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:                   "watch [flags] <dir>",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Re-analyse a directory whenever Rust sources change",
		Args:                  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(AppConfig); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, opts, args[0], debounce)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-analysing after a change")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *RunOptions, root string, debounce time.Duration) error {
	// 重新分析时只解析内容变化的文件
	s := opts.newScanner(AppConfig, scanner.WithCache(core.NewFileCache(0)))
	analyse := func() {
		start := time.Now()
		project, err := s.AnalyzeDir(ctx, root)
		if err != nil {
			Logger.Error("analysis failed", "root", root, "error", err)
			return
		}
		result := &report.ScanResult{Report: project, Root: root, Duration: time.Since(start), Version: CoreVersion}
		if err := writeReport(cmd.OutOrStdout(), opts, result); err != nil {
			Logger.Error("cannot write report", "error", err)
		}
	}

	analyse()
	w := watch.New(root, s, debounce, Logger.Named("watch"))
	Logger.Info("watching for changes", "root", root)
	return w.Run(ctx, func(changed []string) {
		Logger.Info("sources changed", "files", len(changed))
		analyse()
	})
}
