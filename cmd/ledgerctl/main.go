// Package main provides the ledger maintenance CLI.
// Usage: ledgerctl archive --company 7 [--month 2025-02]
//        ledgerctl recalculate --company 7 --item I1 --month 2025-03
//        ledgerctl stock --company 7 --item I1 --date 2025-03-03
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"liquorstock/internal/app"
	"liquorstock/internal/config"
	appctx "liquorstock/internal/core/context"
	"liquorstock/internal/domain/ledger"
	"liquorstock/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var run func(ctx context.Context, a *app.App, args []string) error
	switch os.Args[1] {
	case "archive":
		run = archive
	case "recalculate":
		run = recalculate
	case "stock":
		run = stock
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: true})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := appctx.EnsureTrace(context.Background(), "cli")
	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[2:]); err != nil {
		fmt.Printf("Error: %v\n", err)
		a.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`liquorstock ledger CLI

Usage:
  ledgerctl <command> [options]

Commands:
  archive       Archive closed months of a company (all due months, or --month)
  recalculate   Rebuild one item's month from its opening stock and deltas
  stock         Print an item's stock as of a date
  help          Show this help

Environment Variables:
  LEDGER_DRIVER        postgres (default) or mysql
  DATABASE_URL         Postgres connection string
  MYSQL_DSN            MySQL DSN
  LEDGER_TABLE_PREFIX  Ledger table prefix (default daily_stock)
  REDIS_ADDR           Redis address for the archive lock and stock cache

Examples:
  ledgerctl archive --company 7
  ledgerctl archive --company 7 --month 2025-02
  ledgerctl recalculate --company 7 --item I1 --month 2025-03
  ledgerctl stock --company 7 --item I1 --date 2025-03-03`)
}

func archive(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	companyID := fs.Int64("company", 0, "company id")
	monthArg := fs.String("month", "", "month to archive (YYYY-MM); all due months when empty")
	_ = fs.Parse(args)
	if *companyID <= 0 {
		return fmt.Errorf("--company is required")
	}
	ctx = withCompany(ctx, *companyID)

	var results []ledger.ArchiveResult
	if *monthArg != "" {
		m, err := ledger.ParseStockMonth(*monthArg)
		if err != nil {
			return err
		}
		res, err := a.Archiver.ArchiveMonth(ctx, *companyID, m)
		if err != nil {
			return err
		}
		results = append(results, *res)
	} else {
		var err error
		if results, err = a.Archiver.ArchiveDue(ctx, *companyID); err != nil {
			return err
		}
	}

	if len(results) == 0 {
		fmt.Println("Nothing to archive.")
		return nil
	}
	fmt.Printf("%-10s %-32s %-8s %s\n", "MONTH", "TABLE", "CREATED", "ROWS")
	for _, r := range results {
		fmt.Printf("%-10s %-32s %-8t %d\n", r.Month, r.Table, r.TableCreated, r.RowsCopied)
	}
	return nil
}

func recalculate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("recalculate", flag.ExitOnError)
	companyID := fs.Int64("company", 0, "company id")
	itemCode := fs.String("item", "", "item code")
	monthArg := fs.String("month", "", "month (YYYY-MM)")
	_ = fs.Parse(args)
	if *companyID <= 0 || *itemCode == "" || *monthArg == "" {
		return fmt.Errorf("--company, --item and --month are required")
	}
	m, err := ledger.ParseStockMonth(*monthArg)
	if err != nil {
		return err
	}
	ctx = withCompany(ctx, *companyID)

	res, err := a.Ledger.Recalculate(ctx, *companyID, *itemCode, m)
	if err != nil {
		return err
	}
	fmt.Printf("Recalculated %s %s: %d days, %d following months carried\n", *itemCode, m, res.Days, res.CarriedMonths)
	for _, v := range res.Violations {
		fmt.Printf("  repaired day %02d %s: was %d, now %d\n", v.Day, v.Rule, v.Actual, v.Expected)
	}
	return nil
}

func stock(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("stock", flag.ExitOnError)
	companyID := fs.Int64("company", 0, "company id")
	itemCode := fs.String("item", "", "item code")
	dateArg := fs.String("date", time.Now().Format(time.DateOnly), "date (YYYY-MM-DD)")
	_ = fs.Parse(args)
	if *companyID <= 0 || *itemCode == "" {
		return fmt.Errorf("--company and --item are required")
	}
	date, err := time.Parse(time.DateOnly, *dateArg)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	ctx = withCompany(ctx, *companyID)

	q, err := a.Ledger.StockAsOf(ctx, *companyID, *itemCode, date)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s %d\n", *itemCode, date.Format(time.DateOnly), q)
	return nil
}

func withCompany(ctx context.Context, companyID int64) context.Context {
	return appctx.WithCompany(ctx, &appctx.CompanyContext{CompanyID: companyID, Operator: "ledgerctl"})
}
