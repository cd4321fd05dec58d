package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eoafashion/storefront-api/internal/catalog"
	"github.com/eoafashion/storefront-api/internal/sku"
)

func TestCheckReportsMissingAndUnused(t *testing.T) {
	products := []catalog.Product{
		{ID: 1, Name: "TUMIE Hoodie", Collection: "tumie", Category: "hoodie", Gender: "female", Colors: []string{"Black", "White"}},
		{ID: 2, Name: "LA VEIRA Complete Set", Collection: "laveira", Category: "set", Gender: "male", Colors: []string{"Beige"}},
	}
	table := sku.PriceTable{
		"TM-HD-BLK-F":       "price_a",
		"LV-COMPLETE-M-BGE": "price_b",
		"LV-JK-BLK-M":       "price_c",
	}

	r := check(products, table)
	require.Equal(t, 3, r.Variants)
	require.Len(t, r.Missing, 1)
	require.Equal(t, "TM-HD-WHT-F", r.Missing[0].SKU)
	require.Equal(t, []string{"LV-JK-BLK-M"}, r.Unused)
}

func TestCatalogIsFullyPriced(t *testing.T) {
	r := check(catalog.List(catalog.Filter{}), sku.DefaultPriceTable)
	require.Empty(t, r.Missing)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, sku.PriceTable{
		"TM-TS-BLK-F":       "price_a",
		"TM-COMPLETE-F-BLK": "price_b",
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, []string{"SKU", "PRICE"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"TM-COMPLETE-F-BLK", "price_b"}, strings.Fields(lines[1]))
	require.Equal(t, []string{"TM-TS-BLK-F", "price_a"}, strings.Fields(lines[2]))
	require.Equal(t, strings.Index(lines[0], "PRICE"), strings.Index(lines[2], "price_a"))
}
