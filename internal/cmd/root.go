// Package cmd builds memscan's cobra command tree: global --json/--quiet
// /--verbose/--config-dir flags handled in the root command's
// PersistentPreRunE (the same shape the teacher's root command uses),
// subcommands for process listing, configuration, one-shot scanning and
// environment diagnostics, and a TTY-detected launch into the bubbletea
// TUI when invoked with no subcommand.
package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/relkin/memscan/internal/config"
	"github.com/relkin/memscan/internal/logging"
	"github.com/relkin/memscan/internal/output"
	"github.com/relkin/memscan/internal/tui"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	jsonFlag    bool
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool
	ConfigDir   string
)

// NewRootCmd assembles the full command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := newRootCmd()
	addConfigCommands(rootCmd)
	addDoctorCommand(rootCmd)
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newAttachCmd())
	rootCmd.AddCommand(newScanCmd())
	return rootCmd
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "memscan",
		Short:         "Interactive memory scanner and patcher for local processes",
		Long:          "memscan — attach to a running process by PID, narrow a candidate set of memory addresses by scanning and refining, then edit or freeze values in place.",
		Version:       fmt.Sprintf("memscan v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag && quietFlag {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			if jsonFlag {
				quietFlag = true
			}
			output.SetFlags(jsonFlag, quietFlag, verboseFlag)
			logging.SetVerbose(verboseFlag)
			config.SetConfigDir(ConfigDir)
			return nil
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fi, _ := os.Stdin.Stat()
			isTTY := (fi.Mode() & os.ModeCharDevice) != 0
			if !isTTY {
				return cmd.Help()
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p := tea.NewProgram(tui.NewApp(cfg), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Extra detail to stderr")
	pflags.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	pflags.BoolVar(&noColorFlag, "no-color", false, "Disable ANSI colors")
	pflags.StringVar(&ConfigDir, "config-dir", "", "Override config directory (default: ~/.memscan)")

	if v := os.Getenv("MEMSCAN_HOME"); v != "" && ConfigDir == "" {
		ConfigDir = v
	}
	if os.Getenv("NO_COLOR") != "" {
		noColorFlag = true
	}
	if os.Getenv("MEMSCAN_JSON") == "1" {
		jsonFlag = true
	}

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
