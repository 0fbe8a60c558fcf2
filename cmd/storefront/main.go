package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/internal/config"
	"Storefront/internal/storefront"
	"Storefront/pkg/kit"
)

const usage = `usage: storefront <command> [flags]

commands:
  products   [-category c] [-search s] [-min n] [-max n] [-range band] [-sort order] [-limit n]
  product    <id>
  categories
  stats
  quote      <id>[:qty] ...
`

func main() {
	cfg := config.Load()

	log := kit.NewLogger("storefront", cfg.Logger.Level)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := storefront.NewCatalog(storefront.NewClient(cfg.Storefront.CatalogURL), storefront.Options{
		StaleTime: cfg.Storefront.StaleTime,
		Retention: cfg.Storefront.Retention,
		Log:       log,
	})

	if err := run(ctx, cat, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cat *storefront.Catalog, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "products":
		q, limit, err := parseProductsFlags(rest)
		if err != nil {
			return err
		}
		products, err := cat.Products(ctx, q)
		if err != nil {
			return err
		}
		if limit > 0 && len(products) > limit {
			products = products[:limit]
		}
		return printJSON(out, products)

	case "product":
		if len(rest) != 1 {
			return fmt.Errorf("product: want exactly one id")
		}
		p, err := cat.Product(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(out, p)

	case "categories":
		cats, err := cat.Categories(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, map[string][]string{"categories": cats})

	case "stats":
		stats, err := cat.CategoryStats(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"category_stats": stats})

	case "quote":
		return quote(ctx, cat, rest, out)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseProductsFlags(args []string) (catalog.Query, int, error) {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	category := fs.String("category", "", "exact category")
	search := fs.String("search", "", "case-insensitive text search")
	minPrice := fs.String("min", "", "minimum price")
	maxPrice := fs.String("max", "", "maximum price")
	band := fs.String("range", "", "price band: under_1000, 1000_5000, 5000_20000, over_20000")
	sortBy := fs.String("sort", "", "name, price_low, price_high, newest, oldest")
	limit := fs.Int("limit", 0, "max rows to print")
	if err := fs.Parse(args); err != nil {
		return catalog.Query{}, 0, err
	}

	q := catalog.ParseQuery(map[string][]string{
		"category":    {*category},
		"search":      {*search},
		"min_price":   {*minPrice},
		"max_price":   {*maxPrice},
		"price_range": {*band},
		"sort_by":     {*sortBy},
	})
	return q, *limit, nil
}

// quote fills a cart from id[:qty] arguments and prints lines and totals.
func quote(ctx context.Context, cat *storefront.Catalog, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("quote: want at least one id[:qty]")
	}

	cart := storefront.NewCart()
	for _, arg := range args {
		id, qty, err := parseLine(arg)
		if err != nil {
			return err
		}
		p, err := cat.Product(ctx, id)
		if err != nil {
			return fmt.Errorf("product %s: %w", id, err)
		}
		cart.Add(p)
		cart.SetQuantity(id, cart.Quantity(id)+qty-1)
	}

	return printJSON(out, struct {
		Items      []storefront.CartItem `json:"items"`
		TotalCount int                   `json:"total_count"`
		TotalPrice string                `json:"total_price"`
	}{
		Items:      cart.Items(),
		TotalCount: cart.TotalCount(),
		TotalPrice: cart.TotalPrice().StringFixed(2),
	})
}

func parseLine(arg string) (string, int, error) {
	id, qtyStr, found := strings.Cut(arg, ":")
	if id == "" {
		return "", 0, fmt.Errorf("quote: empty id in %q", arg)
	}
	if !found {
		return id, 1, nil
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil || qty < 1 {
		return "", 0, fmt.Errorf("quote: bad quantity in %q", arg)
	}
	return id, qty, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
