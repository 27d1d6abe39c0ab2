// Package catalog adapts the CKAN client to the detector's dataset model.
package catalog

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/model"
	"github.com/hdx-tools/pcode-detector/internal/resilience"
	"github.com/hdx-tools/pcode-detector/pkg/ckan"
)

// Catalog reads datasets from and writes verdicts to a CKAN instance.
type Catalog struct {
	client  ckan.Client
	updates *resilience.Breaker
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithUpdateBreaker guards verdict write-backs with b. Once the catalog
// keeps rejecting updates, further ones fail fast until b recovers.
func WithUpdateBreaker(b *resilience.Breaker) Option {
	return func(c *Catalog) { c.updates = b }
}

// New wraps a CKAN client.
func New(client ckan.Client, opts ...Option) *Catalog {
	c := &Catalog{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShowDataset returns a dataset with its resources.
func (c *Catalog) ShowDataset(ctx context.Context, id string) (model.Dataset, error) {
	pkg, err := c.client.PackageShow(ctx, id)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "catalog: show dataset %s", id)
	}
	return toDataset(*pkg), nil
}

// Search returns every dataset matching the filter query.
func (c *Catalog) Search(ctx context.Context, fq string) ([]model.Dataset, error) {
	pkgs, err := ckan.SearchAll(ctx, c.client, fq, ckan.DefaultPageSize)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: search datasets")
	}
	out := make([]model.Dataset, len(pkgs))
	for i, p := range pkgs {
		out[i] = toDataset(p)
	}
	return out, nil
}

// SetPCoded records a verdict on a resource.
func (c *Catalog) SetPCoded(ctx context.Context, resourceID string, pcoded bool) error {
	update := func(ctx context.Context) error {
		return c.client.UpdatePCoded(ctx, resourceID, pcoded)
	}
	var err error
	if c.updates != nil {
		err = c.updates.Do(ctx, update)
	} else {
		err = update(ctx)
	}
	if err != nil {
		return eris.Wrapf(err, "catalog: update resource %s", resourceID)
	}
	return nil
}

func toDataset(p ckan.Package) model.Dataset {
	ds := model.Dataset{
		ID:       p.ID,
		Name:     p.Name,
		Title:    p.Title,
		Archived: bool(p.Archived),
	}
	if p.Organization != nil {
		ds.Organization = p.Organization.Name
	}
	for _, g := range p.Groups {
		ds.Locations = append(ds.Locations, strings.ToUpper(g.Name))
	}
	for _, r := range p.Resources {
		res := model.Resource{
			ID:           r.ID,
			Name:         r.Name,
			URL:          r.URL,
			Format:       r.Format,
			Size:         int64(r.Size),
			ResourceType: r.ResourceType,
		}
		if r.PCoded != nil {
			v := bool(*r.PCoded)
			res.PCoded = &v
		}
		ds.Resources = append(ds.Resources, res)
	}
	return ds
}
