package cmd

import (
	"context"
	"fmt"
	"os"
	pathpkg "path/filepath"
	"runtime/pprof"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	binlog "binsight/internal/binsight/log"
	"binsight/internal/config"
	"binsight/internal/logging"
	"binsight/internal/session"
	"binsight/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "binsight [file]",
	Short: "Interactive multi-architecture disassembler",
	Long: `Binsight is a terminal disassembler for ELF binaries. It decodes
x86-64, ARM, ARM64, RISC-V and MIPS machine code, correlates it with
DWARF debug info, and presents the result as a scrollable listing.`,
	Example: `
# Explore a binary interactively
binsight /path/to/binary

# Same, with debug logging to a file
binsight -d --log-file binsight.log /path/to/binary
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup CPU profiling if requested
		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %v", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %v", err)
			}
			defer pprof.StopCPUProfile()
		}

		memprofile, _ := cmd.Flags().GetString("memprofile")
		if memprofile != "" {
			defer func() {
				f, err := os.Create(memprofile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
					return
				}
				defer f.Close()
				if err := pprof.WriteHeapProfile(f); err != nil {
					fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
				}
			}()
		}

		absPath, err := pathpkg.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %v", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", args[0])
			}
			return fmt.Errorf("cannot access file: %v", err)
		}

		debugFlag, _ := cmd.Flags().GetBool("debug")
		logFile, _ := cmd.Flags().GetString("log-file")
		binlog.Setup(logFile, debugFlag)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		if !term.IsTerminal(os.Stdout.Fd()) {
			noTUI = true
		}
		if noTUI {
			return runDump(cmd.Context(), cfg, absPath, dumpOptions{})
		}

		return runTUI(cfg, absPath)
	},
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Analysis.Workers, _ = cmd.Flags().GetInt("workers")
	}
	return cfg, nil
}

func runTUI(cfg config.Config, path string) error {
	logger := logging.NewLogger()
	defer logger.Close()

	sess := session.New(cfg.Policy(), cfg.ScrollConfig(), logger.Logger)
	defer sess.Close()

	// ui.NewModel loads the session from Init; the spinner covers the
	// analysis wait.
	p := tea.NewProgram(ui.NewModel(sess, path), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func Execute() {
	// Bypass fang's markdown help rendering for non-interactive use,
	// matching what --no-tui and piped output get.
	noTUI := false
	for _, arg := range os.Args[1:] {
		if arg == "--no-tui" || arg == "-n" {
			noTUI = true
			break
		}
	}
	if !noTUI && !term.IsTerminal(os.Stdout.Fd()) {
		noTUI = true
	}

	if noTUI {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
	} else {
		if err := fang.Execute(
			context.Background(),
			rootCmd,
			fang.WithNotifySignal(os.Interrupt),
		); err != nil {
			os.Exit(1)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the policy file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().String("log-file", "", "Append logs to a file instead of stderr")
	rootCmd.PersistentFlags().Int("workers", 0, "Override the sweep worker count")

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().BoolP("no-tui", "n", false, "Dump the listing without the TUI")
	rootCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.Flags().String("memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(dumpCmd)
}
