package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/eoafashion/storefront-api/internal/app"
	"github.com/eoafashion/storefront-api/internal/audit"
	"github.com/eoafashion/storefront-api/internal/config"
	"github.com/eoafashion/storefront-api/internal/pricing"
)

// auditlog prints recent checkout audit records.
func main() {
	var (
		cartID  = flag.String("cart", "", "only show records for this cart id")
		limit   = flag.Int("limit", 20, "maximum number of records")
		asJSON  = flag.Bool("json", false, "print records as JSON lines")
		migrate = flag.Bool("migrate", false, "apply audit schema migrations before querying")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	if cfg.DatabaseURL == "" {
		fail(fmt.Errorf("DATABASE_URL is not set"))
	}
	if *migrate {
		if err := audit.Migrate(cfg.DatabaseURL); err != nil {
			fail(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := app.NewDB(ctx, cfg.DatabaseURL, "storefront-auditlog", "auditlog")
	if err != nil {
		fail(err)
	}
	defer pool.Close()

	records, err := audit.Store{Pool: pool}.Recent(ctx, *cartID, *limit)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		err = writeJSON(os.Stdout, records)
	} else {
		err = writeTable(os.Stdout, records)
	}
	if err != nil {
		fail(err)
	}
}

func writeJSON(w io.Writer, records []audit.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, records []audit.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tCART\tSTATUS\tTOTAL\tPROMO\tSESSION\tERROR")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.CartID,
			rec.Status,
			pricing.Format(rec.Total, rec.Currency),
			dash(rec.PromoCode),
			dash(rec.SessionID),
			dash(rec.Error),
		)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "auditlog: %v\n", err)
	os.Exit(2)
}
