package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"binsight/internal/config"
	"binsight/internal/logging"
	"binsight/internal/scroll"
	"binsight/internal/session"
	"binsight/internal/ui/colorize"
)

type dumpOptions struct {
	start   uint64 // 0 means the whole stream
	count   int    // 0 means to the end
	symbols bool   // list symbols instead of the listing
	strings bool   // list recovered data-section strings
}

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Write the disassembly listing to stdout and exit",
	Long: `Dump runs the full analysis non-interactively and writes the
listing as plain text. Output is colorized on a terminal and plain
when piped.`,
	Example: `
# Dump the whole listing
binsight dump /path/to/binary

# Dump 50 rows starting at an address
binsight dump -a 0x401000 -l 50 /path/to/binary

# List symbols with their addresses
binsight dump --symbols /path/to/binary
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var opts dumpOptions
		if at, _ := cmd.Flags().GetString("address"); at != "" {
			addr, err := strconv.ParseUint(strings.TrimPrefix(at, "0x"), 16, 64)
			if err != nil {
				return fmt.Errorf("bad address %q: %v", at, err)
			}
			opts.start = addr
		}
		opts.count, _ = cmd.Flags().GetInt("lines")
		opts.symbols, _ = cmd.Flags().GetBool("symbols")
		opts.strings, _ = cmd.Flags().GetBool("strings")

		return runDump(cmd.Context(), cfg, args[0], opts)
	},
}

func runDump(ctx context.Context, cfg config.Config, path string, opts dumpOptions) error {
	logger := logging.NewLogger()
	defer logger.Close()

	if ctx == nil {
		ctx = context.Background()
	}

	sess := session.New(cfg.Policy(), cfg.ScrollConfig(), logger.Logger)
	defer sess.Close()

	st, err := sess.Load(ctx, path)
	if err != nil {
		return err
	}
	slog.Debug("analysis complete", "file", path, "entries", st.Stream.Len())

	if opts.symbols {
		return dumpSymbols(st)
	}
	if opts.strings {
		return dumpStrings(st)
	}
	return dumpListing(st, opts)
}

func dumpStrings(st *session.State) error {
	for _, hit := range st.Image.ScanStrings(4) {
		fmt.Printf("%12x  %4d  %s\n", hit.Addr, hit.Len, hit.Value)
	}
	return nil
}

func dumpSymbols(st *session.State) error {
	for _, sym := range st.Vault.Symbols() {
		if sym.Intrinsic {
			continue
		}
		fmt.Printf("%12x  %s\n", sym.Addr, sym.Name)
	}
	return nil
}

func dumpListing(st *session.State, opts dumpOptions) error {
	if opts.start != 0 {
		st.Buffer.SetAnchor(opts.start)
	}
	start := st.Buffer.AnchorRow()
	end := st.Buffer.Rows()
	if opts.count > 0 && start+opts.count < end {
		end = start + opts.count
	}

	// Walk in pages through the buffer's window so eviction keeps
	// the row cache bounded on large binaries.
	const page = 256
	var sb strings.Builder
	for i := start; i < end; {
		n := page
		if i+n > end {
			n = end - i
		}
		for _, r := range st.Buffer.Window(n) {
			switch r.Kind {
			case scroll.RowSection:
				fmt.Fprintf(&sb, "\n%s\n", rowText(r))
			case scroll.RowLabel:
				fmt.Fprintf(&sb, "%12s  %s\n", "", rowText(r))
			default:
				fmt.Fprintf(&sb, "%12x  %-24s  %s", r.Addr, r.Bytes, rowText(r))
				if r.File != "" {
					fmt.Fprintf(&sb, "\t; %s:%d", r.File, r.Line)
				}
				sb.WriteByte('\n')
			}
		}
		i += n
		if i < end {
			st.Buffer.Extend(scroll.Forward, n)
		}
	}

	out := sb.String()
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		out = colorize.Listing(out)
	}
	_, err := os.Stdout.WriteString(out)
	return err
}

func rowText(r scroll.Row) string {
	var sb strings.Builder
	for _, t := range r.Tokens {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func init() {
	dumpCmd.Flags().StringP("address", "a", "", "Start address (hex)")
	dumpCmd.Flags().IntP("lines", "l", 0, "Number of rows to dump (0 = all)")
	dumpCmd.Flags().Bool("symbols", false, "List symbols instead of the listing")
	dumpCmd.Flags().Bool("strings", false, "List recovered data-section strings")
}
