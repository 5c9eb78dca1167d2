package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/neurafeed/neurafeed/app/ai"
	"github.com/neurafeed/neurafeed/app/database"
	"github.com/neurafeed/neurafeed/app/feed"
	"github.com/neurafeed/neurafeed/app/notify"
)

// CycleReport summarizes one full ingestion pass over all subscriptions.
type CycleReport struct {
	Sources     int
	Failed      int
	NewArticles int
	Duration    time.Duration
}

// Pipeline executes ingestion cycles: fetch every registered subscription,
// parse it, store the items that are new for their owner and fire the
// follow-on work (extraction, enrichment, notification). A broken source
// never stops the pass; it is logged, counted and skipped until the next
// cycle.
type Pipeline struct {
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository
	userRepo    database.UserRepository

	fetcher   *feed.Fetcher
	parser    *feed.Parser
	extractor *feed.ContentExtractor
	engine    *ai.Engine
	notifier  *notify.Notifier

	fetchTimeout   time.Duration
	notifyTimeout  time.Duration
	enrichOnIngest bool
}

type PipelineOptions struct {
	FetchTimeout   time.Duration
	NotifyTimeout  time.Duration
	EnrichOnIngest bool
}

func NewPipeline(
	sourceRepo database.SourceRepository,
	articleRepo database.ArticleRepository,
	userRepo database.UserRepository,
	fetcher *feed.Fetcher,
	parser *feed.Parser,
	extractor *feed.ContentExtractor,
	engine *ai.Engine,
	notifier *notify.Notifier,
	opts PipelineOptions,
) *Pipeline {
	return &Pipeline{
		sourceRepo:     sourceRepo,
		articleRepo:    articleRepo,
		userRepo:       userRepo,
		fetcher:        fetcher,
		parser:         parser,
		extractor:      extractor,
		engine:         engine,
		notifier:       notifier,
		fetchTimeout:   opts.FetchTimeout,
		notifyTimeout:  opts.NotifyTimeout,
		enrichOnIngest: opts.EnrichOnIngest,
	}
}

// RunCycle performs one pass over every subscription of every user. The
// context is checked between sources only: once a source's processing has
// started it runs to completion, so a shutdown mid-cycle never leaves a
// source half-ingested.
func (p *Pipeline) RunCycle(ctx context.Context) CycleReport {
	started := time.Now()

	sources, err := p.sourceRepo.GetAllSources()
	if err != nil {
		slog.Error("Failed to load subscriptions for cycle", "error", err)
		return CycleReport{Duration: time.Since(started)}
	}

	report := CycleReport{Sources: len(sources)}
	owners := map[string]*database.User{}

	for i := range sources {
		if ctx.Err() != nil {
			slog.Info("Cycle interrupted by shutdown",
				"processed", i, "total", len(sources))
			break
		}

		source := &sources[i]
		added, err := p.processSource(ctx, source, owners)
		if err != nil {
			slog.Warn("Source skipped for this cycle",
				"source_id", source.ID, "feed_url", source.FeedURL, "error", err)
			report.Failed++
			continue
		}

		report.NewArticles += added
		if err := p.sourceRepo.UpdateLastFetched(source.ID, time.Now().UTC()); err != nil {
			slog.Warn("Failed to record fetch time", "source_id", source.ID, "error", err)
		}
	}

	report.Duration = time.Since(started)
	slog.Info("Ingestion cycle finished",
		"sources", report.Sources, "failed", report.Failed,
		"new_articles", report.NewArticles, "duration", report.Duration)
	return report
}

func (p *Pipeline) processSource(ctx context.Context, source *database.Source, owners map[string]*database.User) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	data, err := p.fetcher.Run(fetchCtx, source.FeedURL)
	if err != nil {
		return 0, err
	}

	_, items, err := p.parser.Run(data)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, item := range items {
		stored, err := p.processItem(ctx, source, item)
		if err != nil {
			slog.Warn("Item skipped",
				"source_id", source.ID, "link", item.Link, "error", err)
			continue
		}
		if stored == nil {
			continue
		}

		added++
		p.notifyOwner(source.UserID, stored, owners)
	}

	return added, nil
}

// processItem stores one feed item for the source's owner. Returns nil with
// no error when the item is already known (the per-owner dedup no-op).
func (p *Pipeline) processItem(ctx context.Context, source *database.Source, item feed.Item) (*database.Article, error) {
	link := feed.NormalizeLink(item.Link)
	if link == "" {
		return nil, errors.New("item has no link")
	}

	// Advisory fast path; the unique constraint below is the real guard
	known, err := p.articleRepo.Exists(source.UserID, link)
	if err != nil {
		return nil, err
	}
	if known {
		return nil, nil
	}

	content, ok := p.extractor.Run(ctx, item.Link)
	if !ok {
		content = item.Snippet()
	}

	article := &database.Article{
		SourceID:    source.ID,
		UserID:      source.UserID,
		Title:       item.Title,
		Link:        link,
		Content:     content,
		Keywords:    []string{},
		PublishedAt: item.PublishedAt,
	}

	if p.enrichOnIngest {
		if result := p.engine.Enrich(ctx, content); result != nil {
			article.Summary = &result.Summary
			article.Keywords = result.Keywords
		}
	}

	if err := p.articleRepo.CreateArticle(article); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, nil
		}
		return nil, err
	}

	return article, nil
}

// notifyOwner delivers the new-article alert in the background with its own
// deadline, detached from the cycle context so an in-flight delivery
// survives cycle shutdown but can never delay it.
func (p *Pipeline) notifyOwner(userID string, article *database.Article, owners map[string]*database.User) {
	if !p.notifier.Enabled() {
		return
	}

	owner, cached := owners[userID]
	if !cached {
		var err error
		owner, err = p.userRepo.GetUserByID(userID)
		if err != nil || owner == nil {
			slog.Warn("Failed to load owner for notification", "user_id", userID, "error", err)
			return
		}
		owners[userID] = owner
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
		defer cancel()
		p.notifier.NotifyNewArticle(ctx, owner, article)
	}()
}
