// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"sync"
	"time"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/models"
	"shopscout/internal/pipeline/interpreter"
	"shopscout/internal/pipeline/offersearch"
	"shopscout/internal/pipeline/recommender"
	"shopscout/internal/pipeline/selector"
)

// Pipeline composes interpretation, candidate generation, offer search and
// offer selection into the end-to-end recommendation flow. It is the only
// entry point the chat and HTTP surfaces call, and it always returns a list,
// possibly empty.
type Pipeline struct {
	interpreter *interpreter.Interpreter
	recommender *recommender.Recommender
	provider    *offersearch.Provider
	selector    *selector.Selector
	concurrency int
	logger      logger.Logger
}

// New creates a Pipeline. concurrency bounds the per-item offer search
// fan-out.
func New(
	interp *interpreter.Interpreter,
	rec *recommender.Recommender,
	provider *offersearch.Provider,
	sel *selector.Selector,
	concurrency int,
	log logger.Logger,
) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		interpreter: interp,
		recommender: rec,
		provider:    provider,
		selector:    sel,
		concurrency: concurrency,
		logger:      log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// Run interprets a raw text query and produces recommendations.
func (p *Pipeline) Run(ctx context.Context, rawText, region string) []models.Recommendation {
	query := p.interpreter.Parse(ctx, rawText)
	return p.RunStructured(ctx, query, region)
}

// RunStructured produces recommendations for an already structured query.
func (p *Pipeline) RunStructured(ctx context.Context, query *models.StructuredQuery, region string) []models.Recommendation {
	start := time.Now()

	candidates := p.recommender.Recommend(ctx, query)
	if len(candidates) == 0 {
		p.logger.Info("no candidates produced", map[string]interface{}{
			"item_name": query.ItemName,
		})
		metrics.PipelineRuns.WithLabelValues("structured", "empty").Inc()
		return []models.Recommendation{}
	}

	offers := p.searchOffers(ctx, candidates, region, query.PriceRange)

	recommendations := p.selector.Select(ctx, candidates, offers)

	outcome := "success"
	if len(recommendations) == 0 {
		outcome = "empty"
	}
	metrics.PipelineRuns.WithLabelValues("structured", outcome).Inc()
	metrics.PipelineDuration.WithLabelValues("structured").Observe(time.Since(start).Seconds())

	p.logger.Info("pipeline run completed", map[string]interface{}{
		"item_name":            query.ItemName,
		"candidate_count":      len(candidates),
		"recommendation_count": len(recommendations),
		"duration_seconds":     time.Since(start).Seconds(),
	})
	return recommendations
}

// RunMulti interprets a request for a set of complementary items and
// produces one recommendation per item, in set order.
func (p *Pipeline) RunMulti(ctx context.Context, rawText, region string) []models.Recommendation {
	set := p.interpreter.ParseSet(ctx, rawText)

	out := make([]models.Recommendation, 0, len(set.Items))
	for _, item := range set.Items {
		query := &models.StructuredQuery{ItemName: item, ResultCount: 1}
		out = append(out, p.RunStructured(ctx, query, region)...)
	}
	return out
}

// searchOffers fans out per-candidate shopping searches with bounded
// concurrency. A failed search degrades to the no-results sentinel so one
// bad item never aborts the batch. The map is keyed by candidate name; list
// order is restored later from the candidate slice.
func (p *Pipeline) searchOffers(ctx context.Context, candidates []models.CandidateItem, region string, priceRange *string) map[string]string {
	offers := make(map[string]string, len(candidates))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.concurrency)
	)

	for _, candidate := range candidates {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			block, err := p.provider.Search(ctx, name, region, priceRange)
			if err != nil {
				p.logger.Warn("offer search failed, degrading to no results", map[string]interface{}{
					"item_name": name,
					"error":     err.Error(),
				})
				block = offersearch.NoResultsSentinel
			}

			mu.Lock()
			offers[name] = block
			mu.Unlock()
		}(candidate.Name)
	}
	wg.Wait()

	return offers
}
