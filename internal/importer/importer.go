package importer

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Export file names inside the import directory, one per collection.
const (
	ProductsFile      = "products.ndjson.gz"
	PricingGroupsFile = "pricingGroups.ndjson.gz"
	ProductPricesFile = "productPrices.ndjson.gz"
)

const (
	defaultExpectedRecords = 1_000_000
	bloomFPR               = 0.001
	maxLineBytes           = 4 << 20
	progressEvery          = 100_000
)

// Stats counts the outcome of importing one collection.
type Stats struct {
	Imported int
	// Skipped records were malformed or failed validation.
	Skipped int
	// Dangling records reference a product or group that is not in the
	// export. They are imported anyway.
	Dangling int
}

// Report holds the per-collection stats of an import.
type Report struct {
	Products      Stats
	PricingGroups Stats
	ProductPrices Stats
}

// Options tunes an import.
type Options struct {
	// ExpectedRecords sizes the reference filters. Defaults to one million.
	ExpectedRecords uint
}

// Importer streams gzipped NDJSON exports into a Writer.
//
// Products and pricing groups are imported first, concurrently, while their
// ids are collected into bloom filters. Product prices are imported second and
// checked against the filters: a miss means the referenced record is
// certainly absent from the export. Missing files are skipped.
type Importer struct {
	w        Writer
	expected uint
}

// New returns an Importer writing to w.
func New(w Writer, opts Options) *Importer {
	if opts.ExpectedRecords == 0 {
		opts.ExpectedRecords = defaultExpectedRecords
	}
	return &Importer{w: w, expected: opts.ExpectedRecords}
}

// Run imports the exports found in dir.
func (im *Importer) Run(ctx context.Context, dir string) (*Report, error) {
	var (
		report   Report
		products *bloom.BloomFilter
		groups   *bloom.BloomFilter
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = im.importProducts(gctx, filepath.Join(dir, ProductsFile), &report.Products)
		return errors.Wrap(err, "products")
	})
	g.Go(func() error {
		var err error
		groups, err = im.importPricingGroups(gctx, filepath.Join(dir, PricingGroupsFile), &report.PricingGroups)
		return errors.Wrap(err, "pricing groups")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := im.importProductPrices(ctx, filepath.Join(dir, ProductPricesFile), products, groups, &report.ProductPrices); err != nil {
		return nil, errors.Wrap(err, "product prices")
	}
	return &report, nil
}

func (im *Importer) importProducts(ctx context.Context, path string, st *Stats) (*bloom.BloomFilter, error) {
	filter := bloom.NewWithEstimates(im.expected, bloomFPR)
	found, err := streamRecords(ctx, path, st, func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		filter.AddString(p.ID)
		return write(im.w.UpsertProduct(ctx, p.ID, p.Name, p.Price))
	})
	if !found {
		return nil, err
	}
	return filter, err
}

func (im *Importer) importPricingGroups(ctx context.Context, path string, st *Stats) (*bloom.BloomFilter, error) {
	filter := bloom.NewWithEstimates(im.expected, bloomFPR)
	found, err := streamRecords(ctx, path, st, func(d *jx.Decoder) error {
		rec, err := decodePricingGroup(d)
		if err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		g, err := rec.Domain()
		if err != nil {
			return err
		}
		filter.AddString(g.ID)
		return write(im.w.UpsertPricingGroup(ctx, g))
	})
	if !found {
		return nil, err
	}
	return filter, err
}

func (im *Importer) importProductPrices(ctx context.Context, path string, products, groups *bloom.BloomFilter, st *Stats) error {
	lg := zctx.From(ctx)
	_, err := streamRecords(ctx, path, st, func(d *jx.Decoder) error {
		rec, err := decodeProductPrice(d)
		if err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}

		switch {
		case products != nil && !products.TestString(rec.ProductID):
			st.Dangling++
			lg.Warn("Product price references a product missing from the export",
				zap.String("product_price_id", rec.ID),
				zap.String("product_id", rec.ProductID),
			)
		case rec.PricingGroupID != "" && groups != nil && !groups.TestString(rec.PricingGroupID):
			st.Dangling++
			lg.Warn("Product price references a pricing group missing from the export",
				zap.String("product_price_id", rec.ID),
				zap.String("pricing_group_id", rec.PricingGroupID),
			)
		}
		return write(im.w.UpsertProductPrice(ctx, rec.Domain()))
	})
	return err
}

// writeError marks a failure of the Writer, which aborts the import instead
// of skipping the record.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

func write(err error) error {
	if err == nil {
		return nil
	}
	return &writeError{err: err}
}

// streamRecords calls fn for every line of a gzipped NDJSON file. Records
// that fail to decode or validate are logged and counted as skipped; a
// Writer failure stops the stream. found is false when the file does not
// exist.
func streamRecords(ctx context.Context, path string, st *Stats, fn func(d *jx.Decoder) error) (found bool, err error) {
	lg := zctx.From(ctx).With(zap.String("file", filepath.Base(path)))

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			lg.Info("Export file not found, skipping")
			return false, nil
		}
		return false, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return true, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	d := jx.GetDecoder()
	defer jx.PutDecoder(d)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		d.ResetBytes(data)
		if err := fn(d); err != nil {
			var we *writeError
			if errors.As(err, &we) {
				return true, errors.Wrapf(we.err, "line %d", line)
			}
			st.Skipped++
			lg.Warn("Skipping invalid record", zap.Int("line", line), zap.Error(err))
			continue
		}
		st.Imported++
		if st.Imported%progressEvery == 0 {
			lg.Info("Import progress", zap.Int("imported", st.Imported))
		}
	}
	if err := scanner.Err(); err != nil {
		return true, errors.Wrapf(err, "scan %s", path)
	}

	lg.Info("Imported export file",
		zap.Int("imported", st.Imported),
		zap.Int("skipped", st.Skipped),
		zap.Int("dangling", st.Dangling),
	)
	return true, nil
}
