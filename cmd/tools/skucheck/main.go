package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/eoafashion/storefront-api/internal/catalog"
	"github.com/eoafashion/storefront-api/internal/sku"
)

// skucheck resolves every catalog product and color to its SKU and verifies
// the price table carries a price for it.
// Exit code 0 = ok, 1 = missing prices, 2 = output failure.
func main() {
	list := flag.Bool("list", false, "print every SKU with its price identifier")
	flag.Parse()

	report := check(catalog.List(catalog.Filter{}), sku.DefaultPriceTable)
	if *list {
		if err := writeTable(os.Stdout, sku.DefaultPriceTable); err != nil {
			fmt.Fprintf(os.Stderr, "skucheck: %v\n", err)
			os.Exit(2)
		}
	}
	for _, code := range report.Unused {
		fmt.Fprintf(os.Stderr, "UNUSED: %s has a price but no catalog variant\n", code)
	}
	if len(report.Missing) > 0 {
		for _, m := range report.Missing {
			fmt.Fprintf(os.Stderr, "MISSING: product %d (%s, %s) resolves to %s\n", m.ProductID, m.Name, m.Color, m.SKU)
		}
		os.Exit(1)
	}
	fmt.Printf("skucheck: OK (%d variants)\n", report.Variants)
}

type missing struct {
	ProductID int
	Name      string
	Color     string
	SKU       string
}

type report struct {
	Variants int
	Missing  []missing
	Unused   []string
}

// check walks product colors only; sizes never reach the SKU.
func check(products []catalog.Product, table sku.PriceTable) report {
	var r report
	seen := make(map[string]bool)
	for _, p := range products {
		for _, color := range p.Colors {
			code := sku.Resolve(sku.Item{
				Name:       p.Name,
				Collection: p.Collection,
				Category:   p.Category,
				Color:      color,
				Gender:     p.Gender,
			})
			r.Variants++
			seen[code] = true
			if _, err := table.PriceID(code); err != nil {
				r.Missing = append(r.Missing, missing{ProductID: p.ID, Name: p.Name, Color: color, SKU: code})
			}
		}
	}
	for code := range table {
		if !seen[code] {
			r.Unused = append(r.Unused, code)
		}
	}
	sort.Strings(r.Unused)
	return r
}

func writeTable(w io.Writer, table sku.PriceTable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tPRICE")
	for _, code := range table.SKUs() {
		fmt.Fprintf(tw, "%s\t%s\n", code, table[code])
	}
	return tw.Flush()
}
