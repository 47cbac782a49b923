package service

import (
	"context"
	"strings"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
	"github.com/Skotchmaster/partsdesk/internal/query"
	"github.com/Skotchmaster/partsdesk/internal/querylang"
	"github.com/Skotchmaster/partsdesk/internal/repo"
	"github.com/Skotchmaster/partsdesk/internal/search"
)

const reindexBatch = 500

// LookupService answers the stock and customer searches used while entering orders.
type LookupService struct {
	Repo    *repo.GormRepo
	Backend backend.Backend
	// Index is nil when full-text search is not configured.
	Index *search.StockIndex
}

func (s *LookupService) SearchStock(ctx context.Context, text string, from, to int) ([]models.StockItem, error) {
	q := query.New[models.StockItem](s.Backend, query.Options{
		Table:  orderentry.StockTable,
		Select: orderentry.StockSelect,
		From:   from,
		To:     to,
	})
	return q.Search(ctx, filterFor(text, orderentry.StockColumns))
}

func (s *LookupService) SearchCustomers(ctx context.Context, text string, from, to int) ([]models.Customer, error) {
	q := query.New[models.Customer](s.Backend, query.Options{
		Table: orderentry.CustomersTable,
		From:  from,
		To:    to,
	})
	return q.Search(ctx, filterFor(text, orderentry.CustomerColumns))
}

func filterFor(text string, columns []string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return querylang.SearchAny(text, columns...)
}

func (s *LookupService) FullText(ctx context.Context, q string, from, size int) (search.Results, error) {
	if s.Index == nil {
		return search.Results{}, search.ErrDisabled
	}
	return s.Index.Search(ctx, q, from, size)
}

// SyncStock brings the index in line with the stock rows for ids. Rows that no
// longer exist are removed from the index.
func (s *LookupService) SyncStock(ctx context.Context, ids ...uint) error {
	if s.Index == nil || len(ids) == 0 {
		return nil
	}

	items, err := s.Repo.StockByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if _, err := s.Index.Index(ctx, search.FromStock(items)); err != nil {
		return err
	}

	present := make(map[uint]bool, len(items))
	for _, it := range items {
		present[it.ID] = true
	}
	for _, id := range ids {
		if present[id] {
			continue
		}
		if err := s.Index.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Reindex pushes every stock row into the full-text index.
func (s *LookupService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, search.ErrDisabled
	}
	l := logging.FromContext(ctx).With("svc", "lookup.reindex")

	total := 0
	err := s.Repo.EachStockBatch(ctx, reindexBatch, func(items []models.StockItem) error {
		n, err := s.Index.Index(ctx, search.FromStock(items))
		total += n
		return err
	})
	if err != nil {
		l.Error("reindex_failed", "indexed", total, "error", err)
		return total, err
	}
	l.Info("reindex_done", "indexed", total)
	return total, nil
}
