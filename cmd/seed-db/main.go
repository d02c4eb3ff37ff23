// Command seed-db loads catalog items and membership records into Postgres.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/member-cart/internal/domain/membership"
	"github.com/xenking/member-cart/internal/domain/pricing"
	"github.com/xenking/member-cart/internal/domain/product"
	"github.com/xenking/member-cart/internal/storage/postgres"
)

type catalogFile struct {
	Products    []product.Item
	Memberships []membership.Record
}

func main() {
	var (
		databaseURL string
		catalogPath string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, catalogPath); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, catalogPath string) error {
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	catalog, err := decodeCatalog(data, time.Now())
	if err != nil {
		return errors.Wrap(err, "parse catalog file")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := postgres.NewProductRepository(pool).Upsert(gctx, catalog.Products); err != nil {
			return err
		}
		lg.Info("Upserted products", zap.Int("count", len(catalog.Products)))
		return nil
	})
	g.Go(func() error {
		if err := postgres.NewMembershipRepository(pool).Upsert(gctx, catalog.Memberships); err != nil {
			return err
		}
		lg.Info("Upserted memberships", zap.Int("count", len(catalog.Memberships)))
		return nil
	})
	return g.Wait()
}

// decodeCatalog parses the seed file. unlocksInDays is relative to now.
func decodeCatalog(data []byte, now time.Time) (*catalogFile, error) {
	var out catalogFile
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeProduct(d)
				if err != nil {
					return err
				}
				out.Products = append(out.Products, it)
				return nil
			})
		case "memberships":
			return d.Arr(func(d *jx.Decoder) error {
				rec, err := decodeMembership(d, now)
				if err != nil {
					return err
				}
				out.Memberships = append(out.Memberships, rec)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeProduct(d *jx.Decoder) (product.Item, error) {
	var it product.Item
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			it.ID, err = d.Str()
		case "externalVariantId":
			it.ExternalVariantID, err = d.Str()
		case "title":
			it.Title, err = d.Str()
		case "vendor":
			it.Vendor, err = d.Str()
		case "tier":
			it.TierHint, err = d.Str()
		case "unitPrice":
			var s string
			if s, err = d.Str(); err == nil {
				it.UnitPrice, err = decimal.NewFromString(s)
			}
		case "currencyCode":
			it.CurrencyCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return it, err
	}
	if it.ID == "" || it.CurrencyCode == "" {
		return it, errors.Errorf("product %q: id and currencyCode are required", it.Title)
	}
	if it.TierHint != "" {
		if _, ok := pricing.ParseTier(it.TierHint); !ok {
			return it, errors.Errorf("product %s: unknown tier %q", it.ID, it.TierHint)
		}
	}
	return it, nil
}

func decodeMembership(d *jx.Decoder, now time.Time) (membership.Record, error) {
	var rec membership.Record
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "customerId":
			v, err := d.Str()
			rec.CustomerID = v
			return err
		case "active":
			v, err := d.Bool()
			rec.Active = v
			return err
		case "billingInterval":
			v, err := d.Str()
			rec.BillingInterval = membership.Interval(v)
			return err
		case "unlocksInDays":
			days, err := d.Int()
			if err != nil {
				return err
			}
			at := now.AddDate(0, 0, days)
			rec.UnlocksAt = &at
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return rec, err
	}
	switch rec.BillingInterval {
	case membership.IntervalMonth, membership.IntervalYear:
	default:
		return rec, errors.Errorf("membership %s: billing interval must be month or year", rec.CustomerID)
	}
	return rec, nil
}
