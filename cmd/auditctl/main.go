// Command auditctl is an operator tool for the reconciliation subsystem.
// It audits wallets against their ledger sums, lists unresolved audit
// flags and resolves a flag by writing a compensating adjustment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/unifarm-balance-ledger/internal/auditor"
	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/config"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
	"github.com/unifarm-balance-ledger/internal/logger"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"

	"github.com/unifarm-balance-ledger/internal/data/postgres"
	domainaudit "github.com/unifarm-balance-ledger/internal/domain/audit"
)

const usage = `Usage:
  auditctl audit -user <id>          Audit a single wallet
  auditctl audit -all [-batch <n>]   Audit every wallet in pages
  auditctl flags [-limit <n>] [-offset <n>]
                                     List unresolved audit flags
  auditctl resolve -user <id> -currency <UNI|TON>
                                     Resolve a flag, compensating if needed
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.LoadConfig("auditctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresDB.Close()

	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	idemRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	auditRepo := postgres.NewAuditRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	boostRepo := postgres.NewBoostRepository(log, postgresDB)

	manager := balance.NewManager(postgresDB.Pool(), walletRepo, ledgerRepo, idemRepo, auditRepo, outboxRepo, log)
	engine := auditor.NewAuditor(walletRepo, ledgerRepo, boostRepo, auditRepo, manager, log)

	switch os.Args[1] {
	case "audit":
		err = runAudit(ctx, engine, walletRepo.ListUserIDs, os.Args[2:])
	case "flags":
		err = runFlags(ctx, auditRepo, os.Args[2:])
	case "resolve":
		err = runResolve(ctx, engine, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type listUserIDsFunc func(ctx context.Context, afterUserID int64, limit int) ([]int64, error)

func runAudit(ctx context.Context, engine *auditor.Auditor, listUserIDs listUserIDsFunc, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	userID := fs.Int64("user", 0, "user ID to audit")
	all := fs.Bool("all", false, "audit every wallet")
	batch := fs.Int("batch", 100, "wallets per page when auditing all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *all {
		return auditAll(ctx, engine, listUserIDs, *batch)
	}
	if *userID <= 0 {
		return fmt.Errorf("either -user or -all is required")
	}

	report, err := engine.AuditUser(ctx, *userID)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func auditAll(ctx context.Context, engine *auditor.Auditor, listUserIDs listUserIDsFunc, batch int) error {
	var afterUserID int64
	var audited, divergent int
	for {
		ids, err := listUserIDs(ctx, afterUserID, batch)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			report, err := engine.AuditUser(ctx, id)
			if err != nil {
				return fmt.Errorf("auditing user %d: %w", id, err)
			}
			audited++
			if report.Divergent() {
				divergent++
				printReport(report)
			}
		}
		afterUserID = ids[len(ids)-1]
	}
	fmt.Printf("Audited %d wallets, %d divergent\n", audited, divergent)
	return nil
}

func runFlags(ctx context.Context, auditRepo domainaudit.Repository, args []string) error {
	fs := flag.NewFlagSet("flags", flag.ExitOnError)
	limit := fs.Int("limit", 50, "maximum flags to list")
	offset := fs.Int("offset", 0, "flags to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flags, err := auditRepo.ListUnresolved(ctx, *limit, *offset)
	if err != nil {
		return err
	}
	if len(flags) == 0 {
		fmt.Println("No unresolved audit flags")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tCURRENCY\tEXPECTED\tACTUAL\tREASON\tFLAGGED AT")
	for _, f := range flags {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.UserID, f.Currency,
			f.Expected.String(), f.Actual.String(),
			f.Reason, f.FlaggedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func runResolve(ctx context.Context, engine *auditor.Auditor, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	userID := fs.Int64("user", 0, "user ID whose flag to resolve")
	currency := fs.String("currency", "", "flag currency, UNI or TON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID <= 0 {
		return fmt.Errorf("-user is required")
	}
	cur := shared.Currency(*currency)
	if !cur.Valid() {
		return fmt.Errorf("-currency must be UNI or TON")
	}

	resolved, err := engine.ResolveFlag(ctx, *userID, cur)
	if err != nil {
		return err
	}
	if resolved.ResolutionEntryID != nil {
		fmt.Printf("Resolved flag %d for user %d with adjustment entry %d\n", resolved.ID, resolved.UserID, *resolved.ResolutionEntryID)
	} else {
		fmt.Printf("Resolved flag %d for user %d, balances already agree\n", resolved.ID, resolved.UserID)
	}
	return nil
}

func printReport(report *auditor.Report) {
	fmt.Printf("User %d audited at %s\n", report.UserID, report.AuditedAt.Format("2006-01-02 15:04:05"))
	for _, check := range report.Checks {
		status := "OK"
		if check.Divergent {
			status = "DIVERGENT"
		}
		fmt.Printf("  %-4s expected=%s actual=%s %s", check.Currency, check.Expected.String(), check.Actual.String(), status)
		if check.Reason != "" {
			fmt.Printf(" (%s)", check.Reason)
		}
		fmt.Println()
	}
}
