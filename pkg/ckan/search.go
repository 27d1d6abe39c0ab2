package ckan

import (
	"context"

	"github.com/rotisserie/eris"
)

// DefaultPageSize is the number of packages requested per search page.
const DefaultPageSize = 100

// SearchAll pages through package_search until every match has been read.
func SearchAll(ctx context.Context, c Client, fq string, pageSize int) ([]Package, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []Package
	for start := 0; ; start += pageSize {
		page, err := c.PackageSearch(ctx, fq, pageSize, start)
		if err != nil {
			return all, eris.Wrapf(err, "ckan: search page at %d", start)
		}
		all = append(all, page.Results...)
		if len(page.Results) == 0 || len(all) >= page.Count {
			return all, nil
		}
	}
}
