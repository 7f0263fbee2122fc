// Command salesctl prints dashboard reports from the terminal and manages
// encryption of the data directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"salesdash/internal/config"
	apphttp "salesdash/internal/http"
	"salesdash/internal/models"
	"salesdash/internal/services/cache"
	"salesdash/internal/services/dashboard"
	"salesdash/internal/services/dataloader"
	"salesdash/internal/services/source"
	"salesdash/internal/services/storage"
	"salesdash/internal/version"
)

const usage = `usage: salesctl <command> [flags]

commands:
  report    print KPIs and every chart series
  encrypt   encrypt the data directory with a passphrase
  decrypt   decrypt the data directory
  version   print build information
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "report":
		err = runReport(context.Background(), cfg, args, os.Stdout)
	case "encrypt":
		err = runEncrypt(cfg)
	case "decrypt":
		err = runDecrypt(cfg)
	case "version":
		fmt.Println(version.Get().String())
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "salesctl:", err)
		os.Exit(1)
	}
}

// listFlag collects a repeatable flag and remembers whether it was given at all
type listFlag struct {
	values []string
	set    bool
}

func (l *listFlag) String() string { return strings.Join(l.values, ",") }

func (l *listFlag) Set(v string) error {
	l.set = true
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			l.values = append(l.values, part)
		}
	}
	return nil
}

func runReport(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fset := flag.NewFlagSet("report", flag.ContinueOnError)
	asJSON := fset.Bool("json", false, "print the snapshot as JSON")
	scope := fset.String("scope", cfg.AggregateScope, "aggregate scope: dataset or filtered")
	var states, categories listFlag
	fset.Var(&states, "state", "state to include (repeatable or comma separated; empty selects none)")
	fset.Var(&categories, "category", "product category to include (repeatable or comma separated)")
	start := fset.String("start", "", "first invoice date, YYYY-MM-DD")
	end := fset.String("end", "", "last invoice date, YYYY-MM-DD")
	if err := fset.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	src, err := source.FromConfig(ctx, cfg.Source, store)
	if err != nil {
		return err
	}

	opts := dashboard.OptionsFromConfig(cfg)
	opts.Scope = *scope
	engine, err := dashboard.NewEngine(cache.New(dataloader.New(src), nil), opts, nil)
	if err != nil {
		return err
	}

	fs, err := engine.DefaultFilter(ctx)
	if err != nil {
		return err
	}
	if states.set {
		fs.States = states.values
	}
	if categories.set {
		fs.Categories = categories.values
	}
	if *start != "" {
		if fs.Start, err = apphttp.ParseDate(*start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if *end != "" {
		if fs.End, err = apphttp.ParseDate(*end); err != nil {
			return fmt.Errorf("end: %w", err)
		}
	}

	snap, err := engine.Recompute(ctx, fs)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return printReport(out, snap, engine.Metrics().Currency)
}

func printReport(out io.Writer, snap *models.Snapshot, money func(decimal.Decimal) string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Scope\t%s\n", snap.Scope)
	fmt.Fprintf(tw, "Rows\t%d of %d\n", snap.RowCount, snap.TotalRows)
	fmt.Fprintf(tw, "Total Sales\t%s\n", snap.KPIs.TotalSalesDisplay)
	fmt.Fprintf(tw, "Operating Profit\t%s\n", snap.KPIs.OperatingProfitDisplay)
	fmt.Fprintf(tw, "Total Orders\t%s\n", snap.KPIs.TotalOrdersDisplay)

	for _, c := range snap.Charts {
		fmt.Fprintln(tw)
		switch {
		case c.Error != "":
			fmt.Fprintf(tw, "== %s\tFAILED: %s\n", c.ID, c.Error)
			continue
		case c.Spec == nil:
			continue
		}
		fmt.Fprintf(tw, "== %s\n", c.Spec.Title)
		if c.Spec.Series.IsEmpty() {
			fmt.Fprintln(tw, "(no data)")
			continue
		}
		for _, p := range c.Spec.Series.Points {
			if p.Group != "" {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Label, p.Group, money(p.Value))
			} else {
				fmt.Fprintf(tw, "%s\t%s\n", p.Label, money(p.Value))
			}
		}
	}

	for _, w := range snap.Warnings {
		fmt.Fprintf(tw, "\nwarning: %s: %s\n", w.Chart, w.Message)
	}
	return tw.Flush()
}

// openStore opens the data directory for file sources, unlocking it when needed
func openStore(cfg *config.Config) (*storage.Storage, error) {
	if cfg.Source.Kind != config.SourceFile {
		return nil, nil
	}
	if err := cfg.EnsureDataDirectory(); err != nil {
		return nil, err
	}
	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		return nil, err
	}
	if !store.IsEncrypted() {
		return store, nil
	}
	password, err := passwordFor(cfg, "Data directory password: ")
	if err != nil {
		return nil, err
	}
	return store, store.Unlock(password)
}

func runEncrypt(cfg *config.Config) error {
	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		return err
	}
	if store.IsEncrypted() {
		return errors.New("data directory is already encrypted")
	}

	password, err := passwordFor(cfg, "New password: ")
	if err != nil {
		return err
	}
	if cfg.Password == "" {
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return errors.New("passwords do not match")
		}
	}
	if err := store.EnableEncryption(password); err != nil {
		return err
	}
	fmt.Printf("Encrypted %s\n", cfg.DataDirectory)
	return nil
}

func runDecrypt(cfg *config.Config) error {
	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		return err
	}
	if !store.IsEncrypted() {
		return errors.New("data directory is not encrypted")
	}
	password, err := passwordFor(cfg, "Password: ")
	if err != nil {
		return err
	}
	if err := store.DisableEncryption(password); err != nil {
		return err
	}
	fmt.Printf("Decrypted %s\n", cfg.DataDirectory)
	return nil
}

// passwordFor prefers SALESDASH_PASSWORD and falls back to a terminal prompt
func passwordFor(cfg *config.Config, prompt string) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	return readPassword(prompt)
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal for password prompt; set SALESDASH_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
