package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/paiml/probar-sub002/internal/config"
	"github.com/paiml/probar-sub002/internal/logger"
)

var (
	cfgFile   string
	AppConfig *config.Config
	Logger    hclog.Logger

	// errFindings 报告含 Error 级别命中，只影响退出码
	errFindings = errors.New("error-severity findings reported")
)

// NewRootCmd 创建根命令及全部子命令
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:                   "statesync [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "statesync finds closures that receive a new shared handle instead of a clone of self's.",
		Long: `statesync analyses Rust sources for closure factories that hand a freshly
constructed Rc (directly, through an alias, a helper, a method chain or a raw
pointer round trip) to a closure instead of cloning the handle owned by self.
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); built-in defaults when empty")

	rootCmd.AddCommand(
		NewScanCmd(),
		NewWatchCmd(),
		NewRulesCmd(),
		NewVersionCmd(),
	)
	return rootCmd
}

// Execute 运行 CLI；出错或存在 Error 级别命中时以状态码 1 退出
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		}
		os.Exit(1)
	}
}

func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	AppConfig = cfg
	Logger = logger.NewLogger(AppConfig, "statesync")
	return nil
}
