// Package generator produces candidate news items for a category, either by
// asking a language model or by reading the category's feeds.
package generator

import (
	"context"
	"errors"

	"github.com/pevans/evmotor/news"
)

// Generator produces unvalidated candidates for one category.
type Generator interface {
	Generate(ctx context.Context, category Category) ([]news.Candidate, error)
}

// MultiGenerator runs several generators in order and concatenates their
// output. An error is returned only when every generator failed.
type MultiGenerator []Generator

var _ Generator = MultiGenerator(nil)

func (m MultiGenerator) Generate(ctx context.Context, category Category) ([]news.Candidate, error) {
	var (
		all  []news.Candidate
		errs []error
	)

	for _, g := range m {
		candidates, err := g.Generate(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		all = append(all, candidates...)
	}

	if len(errs) > 0 && len(errs) == len(m) {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

// finalize forces the category label and drops entries a validator could not
// use.
func finalize(candidates []news.Candidate, category Category) []news.Candidate {
	out := make([]news.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.URL == "" || (c.Title == "" && c.TitleKR == "") {
			continue
		}
		c.Category = category.ID
		out = append(out, c)
	}
	return out
}
