package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// pricesCmd represents the prices command
var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Sync and inspect the settlement price series",
	Long: `Manages the local copy of the daily settlement series the
pipeline values against.

Subcommands:
  sync    - pull newly published settlements from the feed
  latest  - show the newest published day
  show    - list published prices over a date range

Example:
  go run ./cmd/hedgectl prices sync
  go run ./cmd/hedgectl prices show --from 2026-01-10 --to 2026-01-20`,
}

var (
	pricesFrom string
	pricesTo   string

	pricesSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Pull newly published settlements from the feed",
		RunE:  syncPrices,
	}

	pricesLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "Show the newest published day",
		RunE:  showLatestPrice,
	}

	pricesShowCmd = &cobra.Command{
		Use:   "show",
		Short: "List published prices over a date range",
		RunE:  showPrices,
	}
)

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesSyncCmd)
	pricesCmd.AddCommand(pricesLatestCmd)
	pricesCmd.AddCommand(pricesShowCmd)

	pricesShowCmd.Flags().StringVar(&pricesFrom, "from", "", "start date (YYYY-MM-DD)")
	pricesShowCmd.Flags().StringVar(&pricesTo, "to", "", "end date (YYYY-MM-DD, default today)")
	_ = pricesShowCmd.MarkFlagRequired("from")
}

func syncPrices(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	inserted, err := app.syncer.Sync(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync settlement prices: %w", err)
	}

	fmt.Printf("Synced %s/%s: %d new settlement(s)\n",
		app.cfg.Feed.Symbol, app.cfg.Feed.PriceType, inserted)
	return nil
}

func showLatestPrice(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	latest, ok, err := app.feed.LatestPublishedDate(cmd.Context(), app.cfg.Feed.Symbol, app.cfg.Feed.PriceType)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("No published prices for %s/%s\n", app.cfg.Feed.Symbol, app.cfg.Feed.PriceType)
		return nil
	}

	price, ok, err := app.feed.PriceOn(cmd.Context(), app.cfg.Feed.Symbol, app.cfg.Feed.PriceType, latest)
	if err != nil {
		return err
	}

	fmt.Printf("Latest published: %s\n", latest.Format(contracts.DateOnly))
	if ok {
		fmt.Printf("Settlement:       %.2f USD/mt\n", price)
	}
	return nil
}

func showPrices(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(contracts.DateOnly, pricesFrom)
	if err != nil {
		return fmt.Errorf("invalid --from %q: %w", pricesFrom, err)
	}
	to := contracts.Day(time.Now().UTC())
	if pricesTo != "" {
		to, err = time.Parse(contracts.DateOnly, pricesTo)
		if err != nil {
			return fmt.Errorf("invalid --to %q: %w", pricesTo, err)
		}
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	series, err := app.feed.SeriesBetween(cmd.Context(), app.cfg.Feed.Symbol, app.cfg.Feed.PriceType, from, to)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Println("No prices published in range")
		return nil
	}

	fmt.Printf("%s/%s, %s to %s:\n", app.cfg.Feed.Symbol, app.cfg.Feed.PriceType,
		from.Format(contracts.DateOnly), to.Format(contracts.DateOnly))
	for _, p := range series {
		fmt.Printf("  %s  %10.2f\n", p.Date.Format(contracts.DateOnly), p.PriceUSD)
	}
	return nil
}
