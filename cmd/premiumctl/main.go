// Command premiumctl issues code batches and prints usage reports against the
// Postgres code store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/codec"
	"github.com/carmasterapp/car-master/internal/config"
	"github.com/carmasterapp/car-master/internal/database"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
	"github.com/carmasterapp/car-master/internal/service"
)

const usage = `usage:
  premiumctl generate -count N -type TYPE [-notes TEXT] [-batch NAME] [-out DIR]
  premiumctl stats`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.UsesMemoryStore() {
		log.Fatal().Msg("premiumctl needs STORE_BACKEND=postgres")
	}
	if err := cfg.Validate(false); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	codeRepo := repository.NewCodeRepository(db)
	activationRepo := repository.NewActivationLogRepository(db)

	switch os.Args[1] {
	case "generate":
		issuance := service.NewIssuanceService(codeRepo, codec.New(cfg.CodePrefix, cfg.MasterKey))
		err = runGenerate(ctx, issuance, os.Args[2:], os.Stdout)
	case "stats":
		err = runStats(ctx, service.NewStatsService(codeRepo, activationRepo), os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context, issuance *service.IssuanceService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	count := fs.Int("count", 1, "number of codes to issue")
	typ := fs.String("type", string(model.CodeTypeCustomer), "code type")
	notes := fs.String("notes", "", "free-form notes stored with each code")
	batch := fs.String("batch", "", "batch label (defaults to batch_<unix seconds>)")
	dir := fs.String("out", ".", "directory for the export file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := service.IssueParams{
		Count: *count,
		Type:  model.CodeType(*typ),
		Notes: *notes,
		Batch: *batch,
	}
	codes, err := issuance.IssueBatch(ctx, params)
	if err != nil {
		return err
	}

	now := time.Now()
	path := filepath.Join(*dir, exportFileName(params.Type, now))
	if err := os.WriteFile(path, []byte(formatExport(params, codes, now)), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Fprintf(out, "Generated %d %s codes\n", len(codes), params.Type)
	fmt.Fprintf(out, "Saved to %s\n", path)
	return nil
}

func exportFileName(t model.CodeType, now time.Time) string {
	return fmt.Sprintf("generated-codes-%s-%s.txt", t, now.Format("2006-01-02"))
}

func formatExport(params service.IssueParams, codes []string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# CarMaster Premium Codes - %s\n", params.Type)
	fmt.Fprintf(&b, "# Generated: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "# Count: %d\n", len(codes))
	if params.Batch != "" {
		fmt.Fprintf(&b, "# Batch: %s\n", params.Batch)
	}
	if params.Notes != "" {
		fmt.Fprintf(&b, "# Notes: %s\n", params.Notes)
	}
	b.WriteString("\n")
	for _, code := range codes {
		b.WriteString(code)
		b.WriteString("\n")
	}
	return b.String()
}

func runStats(ctx context.Context, stats *service.StatsService, out io.Writer) error {
	report, err := stats.Report(ctx)
	if err != nil {
		return err
	}
	printReport(out, report)
	return nil
}

func printReport(out io.Writer, r *service.Report) {
	s := r.Stats
	fmt.Fprintln(out, "CarMaster Premium Codes")
	fmt.Fprintln(out, strings.Repeat("=", 40))
	fmt.Fprintf(out, "Total codes:  %d\n", s.TotalCodes)
	fmt.Fprintf(out, "Used:         %d\n", s.TotalUsed)
	fmt.Fprintf(out, "Unused:       %d\n", s.Unused)
	fmt.Fprintf(out, "Expired:      %d\n", s.Expired)
	fmt.Fprintf(out, "Usage rate:   %.1f%%\n", r.UsageRate)
	if s.LastUpdated != nil {
		fmt.Fprintf(out, "Last updated: %s\n", s.LastUpdated.UTC().Format(time.RFC3339))
	}

	fmt.Fprintln(out, "\nBy type")
	for _, t := range model.AllCodeTypes {
		tc, ok := s.ByType[t]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %-11s %4d used / %4d total\n", t, tc.Used, tc.Total)
	}

	fmt.Fprintln(out, "\nRevenue estimate")
	for _, rev := range r.Revenue {
		fmt.Fprintf(out, "  %-11s %4d x %s = %s\n", rev.Type, rev.Used, euros(rev.UnitCents), euros(rev.TotalCents))
	}
	fmt.Fprintf(out, "  %-11s %s\n", "total", euros(r.TotalRevenueCents))

	if len(r.RecentActivations) > 0 {
		fmt.Fprintln(out, "\nRecent activations")
		for _, a := range r.RecentActivations {
			fmt.Fprintf(out, "  %s  %s  %s\n", a.CreatedAt.UTC().Format(time.RFC3339), a.Code, a.DeviceID)
		}
	}

	if len(r.ExpiringSoon) > 0 {
		fmt.Fprintln(out, "\nExpiring soon (unused)")
		for _, e := range r.ExpiringSoon {
			fmt.Fprintf(out, "  %s  %d days left\n", e.Code, e.DaysLeft)
		}
	}
}

func euros(cents int64) string {
	return fmt.Sprintf("€%d.%02d", cents/100, cents%100)
}
