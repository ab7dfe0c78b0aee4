package http

import (
	"context"
	"time"

	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const collectTimeout = 5 * time.Second

// countStore is what the collector needs from the store.
type countStore interface {
	ListCollections(ctx context.Context) ([]store.Collection, error)
	Count(ctx context.Context, collection string) (int, error)
}

// storeCollector reports collection and document counts by kind at scrape
// time. A failed listing reports nothing; a failed count skips that
// collection.
type storeCollector struct {
	store       countStore
	logger      *zap.Logger
	collections *prometheus.Desc
	documents   *prometheus.Desc
}

func newStoreCollector(s countStore, logger *zap.Logger) *storeCollector {
	return &storeCollector{
		store:  s,
		logger: logger,
		collections: prometheus.NewDesc("peacock_collections",
			"Number of collections by kind.", []string{"kind"}, nil),
		documents: prometheus.NewDesc("peacock_documents",
			"Number of stored documents by collection kind.", []string{"kind"}, nil),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.collections
	ch <- c.documents
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	colls, err := c.store.ListCollections(ctx)
	if err != nil {
		c.logger.Warn("metrics: listing collections failed", zap.Error(err))
		return
	}
	kinds := []string{store.KindProject, store.KindGlobal, store.KindConversations}
	collCount := make(map[string]int, len(kinds))
	docCount := make(map[string]int, len(kinds))
	for _, coll := range colls {
		collCount[coll.Kind]++
		n, err := c.store.Count(ctx, coll.Name)
		if err != nil {
			continue
		}
		docCount[coll.Kind] += n
	}
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(c.collections, prometheus.GaugeValue, float64(collCount[k]), k)
		ch <- prometheus.MustNewConstMetric(c.documents, prometheus.GaugeValue, float64(docCount[k]), k)
	}
}
