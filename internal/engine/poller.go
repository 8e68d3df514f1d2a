package engine

import (
	"context"
	"sync"
	"time"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// RoundResult summarises one poll round.
type RoundResult struct {
	Feeds    int
	Failed   int
	NewPosts int
}

// fetchResult holds the outcome of fetching a single feed.
type fetchResult struct {
	feed  model.Feed
	items []model.Post
	err   error
}

// PollOnce re-fetches every known feed concurrently, waits for all of them
// to settle and then prepends the posts whose link is not yet known as a
// single batch. A failing feed is logged and skipped for this round.
func (e *Engine) PollOnce(ctx context.Context) RoundResult {
	start := time.Now()
	feeds := e.store.Feeds()
	results := make([]fetchResult, len(feeds))

	var wg sync.WaitGroup
	for i, feed := range feeds {
		wg.Add(1)
		go func(i int, feed model.Feed) {
			defer wg.Done()
			res := fetchResult{feed: feed}
			doc, err := e.load(ctx, feed.URL)
			if err != nil {
				res.err = err
			} else {
				res.items = doc.Items
			}
			results[i] = res
		}(i, feed)
	}
	wg.Wait()

	round := RoundResult{Feeds: len(feeds)}
	var candidates []model.Post
	for _, res := range results {
		if res.err != nil {
			round.Failed++
			kind := model.KindOf(res.err)
			feedFailures.WithLabelValues(string(kind)).Inc()
			log.WithFields(log.Fields{
				"feed_url": res.feed.URL,
				"kind":     kind,
			}).Warnf("Poll: skipping feed this round: %v", res.err)
			continue
		}
		candidates = append(candidates, ofFeed(res.feed.URL, res.items)...)
	}

	if len(candidates) > 0 {
		round.NewPosts = e.store.MergePosts(func(known []model.Post) []model.Post {
			return e.assignIDs(unseen(candidates, known))
		})
	}

	pollRounds.Inc()
	pollRoundDuration.Observe(time.Since(start).Seconds())
	newPosts.Add(float64(round.NewPosts))
	log.WithFields(log.Fields{
		"feeds":     round.Feeds,
		"failed":    round.Failed,
		"new_posts": round.NewPosts,
	}).Debug("Poll round complete")
	return round
}

// unseen returns the candidates whose link is absent from known: the
// difference, by link, of candidates-union-known against known. Within the
// batch the first candidate for a link wins.
func unseen(candidates, known []model.Post) []model.Post {
	knownLinks := lo.KeyBy(known, func(p model.Post) string { return p.Link })
	fresh := lo.Filter(lo.Union(candidates, known), func(p model.Post, _ int) bool {
		_, ok := knownLinks[p.Link]
		return !ok
	})
	return lo.UniqBy(fresh, func(p model.Post) string { return p.Link })
}

// ofFeed tags items with the feed they came from.
func ofFeed(feedURL string, items []model.Post) []model.Post {
	return lo.Map(items, func(p model.Post, _ int) model.Post {
		p.FeedURL = feedURL
		return p
	})
}

// Run polls until ctx is done. The next round starts Interval after the
// previous one finished, whatever its outcome.
func (e *Engine) Run(ctx context.Context) error {
	for {
		e.PollOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.interval):
		}
	}
}

// Start begins the polling loop in the background. Calling Start while the
// loop is running has no effect.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		log.Infof("Poller: started (interval: %s)", e.interval)
		_ = e.Run(ctx)
		log.Info("Poller: stopped")
	}()
}

// Stop cancels the polling loop and waits for the current round to end.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}
