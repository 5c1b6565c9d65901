package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/hembot/hembot/src/app"
	"github.com/hembot/hembot/src/scraper"
)

// IngestCmd indexes products into the catalog: either a scraped-products
// JSON file or a single product page URL.
type IngestCmd struct {
	File string `short:"f" help:"Products JSON file (defaults to the configured source file)"`
	URL  string `short:"u" help:"Scrape and index a single product page"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if c.URL != "" {
		sc := scraper.New(cfg.Gemini.Timeout, logger)
		product, err := sc.ScrapeProduct(ctx, c.URL)
		if err != nil {
			return err
		}
		if err := application.Catalog.Ingest(ctx, product, scraper.BuildDocument(product)); err != nil {
			return err
		}
		fmt.Printf("Indexed %s ($%s)\n", product.Name, product.Price)
		return nil
	}

	path := c.File
	if path == "" {
		path = cfg.Catalog.SourceFile
	}
	products, err := scraper.LoadProducts(afero.NewOsFs(), path)
	if err != nil {
		return err
	}

	indexed := 0
	for _, p := range products {
		if err := application.Catalog.Ingest(ctx, p, scraper.BuildDocument(p)); err != nil {
			logger.Warn("failed to index product", "name", p.Name, "error", err)
			continue
		}
		indexed++
		if indexed%25 == 0 {
			logger.Info("ingest progress", "indexed", indexed, "total", len(products))
		}
	}

	total, err := application.Catalog.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d of %d products (catalog now holds %d)\n", indexed, len(products), total)
	return nil
}
