package recommend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is one purchasable item from the catalog.
type Product struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Details      string          `json:"-"`
	Manufacturer string          `json:"manufacturer"`
	Price        decimal.Decimal `json:"price"`
	URL          string          `json:"url"`
}

// Text is the lowercased text the product is indexed under.
func (p Product) Text() string {
	return strings.ToLower(p.Title + " " + p.Details + " " + p.Manufacturer)
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	nonNumeric  = regexp.MustCompile(`[^\d.]`)
)

// cleanText removes punctuation, keeping letters, digits, underscores and spaces.
func cleanText(s string) string {
	return strings.TrimSpace(punctuation.ReplaceAllString(s, ""))
}

// parsePrice extracts a decimal from strings such as "PKR 1,250.00".
// Unparseable prices are zero.
func parsePrice(s string) decimal.Decimal {
	digits := nonNumeric.ReplaceAllString(s, "")
	if digits == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LoadCSV reads products from a CSV file with a header row naming any of
// id, title, details, manufacturer, price and url. Missing columns are empty.
func LoadCSV(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening product catalog: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a product catalog from r. Rows without an id get their
// 1-based row number.
func ReadCSV(r io.Reader) ([]Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var products []Product
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog row %d: %w", row, err)
		}
		id := strings.TrimSpace(field(rec, "id"))
		if id == "" {
			id = fmt.Sprint(row)
		}
		products = append(products, Product{
			ID:           id,
			Title:        cleanText(field(rec, "title")),
			Details:      cleanText(field(rec, "details")),
			Manufacturer: cleanText(field(rec, "manufacturer")),
			Price:        parsePrice(field(rec, "price")),
			URL:          strings.TrimSpace(field(rec, "url")),
		})
	}
	return products, nil
}
