package importer

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written data set, used to seed development databases.
type Fixture struct {
	Products      []Product      `yaml:"products"`
	PricingGroups []PricingGroup `yaml:"pricingGroups"`
	ProductPrices []ProductPrice `yaml:"productPrices"`
}

// LoadFixture decodes and validates a YAML fixture. Unknown keys are
// rejected so typos do not silently drop data.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode fixture")
	}

	for i := range f.Products {
		if err := f.Products[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "products[%d]", i)
		}
	}
	for i := range f.PricingGroups {
		if err := f.PricingGroups[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "pricingGroups[%d]", i)
		}
	}
	for i := range f.ProductPrices {
		if err := f.ProductPrices[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "productPrices[%d]", i)
		}
	}
	return &f, nil
}

// Apply writes every record of the fixture.
func (f *Fixture) Apply(ctx context.Context, w Writer) error {
	lg := zctx.From(ctx)

	for _, p := range f.Products {
		if err := w.UpsertProduct(ctx, p.ID, p.Name, p.Price); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	lg.Info("Seeded products", zap.Int("count", len(f.Products)))

	for _, rec := range f.PricingGroups {
		g, err := rec.Domain()
		if err != nil {
			return errors.Wrapf(err, "pricing group %s", rec.ID)
		}
		if err := w.UpsertPricingGroup(ctx, g); err != nil {
			return errors.Wrapf(err, "upsert pricing group %s", rec.ID)
		}
	}
	lg.Info("Seeded pricing groups", zap.Int("count", len(f.PricingGroups)))

	for _, rec := range f.ProductPrices {
		if err := w.UpsertProductPrice(ctx, rec.Domain()); err != nil {
			return errors.Wrapf(err, "upsert product price %s", rec.ID)
		}
	}
	lg.Info("Seeded product prices", zap.Int("count", len(f.ProductPrices)))

	return nil
}
