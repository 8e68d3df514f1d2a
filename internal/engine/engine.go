// Package engine owns the add-feed workflow and the recurring poll that
// merges newly discovered posts into the state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/bryan-buckman/infowatch/internal/rss"
	"github.com/bryan-buckman/infowatch/internal/state"
	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// DefaultInterval is the delay between the end of one poll round and the
// start of the next.
const DefaultInterval = 5 * time.Second

// Fetcher retrieves a raw feed document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Parser turns a raw feed document into a feed and its items.
type Parser interface {
	Parse(document string) (*rss.Document, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the poll delay. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithIDGenerator replaces the post id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// Engine mutates the store through the fetcher and parser.
//
// Only one AddFeed is expected in flight at a time; callers serialize
// submissions (the UI disables input while loading). The engine does not
// enforce it, but the store rejects a duplicate feed URL if two adds of
// the same URL race.
type Engine struct {
	store    *state.Store
	fetcher  Fetcher
	parser   Parser
	newID    func() string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine over store.
func New(store *state.Store, fetcher Fetcher, parser Parser, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		fetcher:  fetcher,
		parser:   parser,
		newID:    uuid.NewString,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Interval returns the configured poll delay.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Submit validates a user-entered feed URL, records the form status and,
// when valid, adds the feed. Validation failures are returned without any
// network call.
func (e *Engine) Submit(ctx context.Context, candidate string) error {
	link := strings.TrimSpace(candidate)
	if err := rss.ValidateLink(link, e.store.FeedURLs()); err != nil {
		e.store.SetFormStatus(model.FormStatus{IsValid: false, ErrorMessage: formMessage(err)})
		return err
	}
	e.store.SetFormStatus(model.FormStatus{IsValid: true})
	return e.AddFeed(ctx, link)
}

func formMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidURL):
		return model.ErrInvalidURL.Error()
	case errors.Is(err, model.ErrDuplicateURL):
		return model.ErrDuplicateURL.Error()
	default:
		return err.Error()
	}
}

// AddFeed fetches and parses url and, on success, prepends the feed and
// its posts. Progress is reported through loadStatus: loading, then idle
// on success or failed with an error kind.
func (e *Engine) AddFeed(ctx context.Context, url string) error {
	e.store.SetLoadPhase(model.PhaseLoading)
	e.store.SetLoadError(model.KindNone)

	doc, err := e.load(ctx, url)
	if err == nil {
		feed := doc.Feed
		feed.URL = url
		posts := e.assignIDs(ofFeed(url, doc.Items))
		if err = e.store.AddFeed(feed, posts); err == nil {
			e.store.SetLoadPhase(model.PhaseIdle)
			newPosts.Add(float64(len(posts)))
			knownFeeds.Inc()
			addFeedOutcomes.WithLabelValues("success").Inc()
			log.WithFields(log.Fields{
				"feed_url": url,
				"posts":    len(posts),
			}).Info("Feed added")
			return nil
		}
	}

	if errors.Is(err, model.ErrDuplicateURL) {
		// Another add of the same URL won the race; report it as the form
		// does rather than as a load failure.
		e.store.SetFormStatus(model.FormStatus{IsValid: false, ErrorMessage: formMessage(err)})
		e.store.SetLoadPhase(model.PhaseIdle)
		addFeedOutcomes.WithLabelValues("duplicate").Inc()
		log.WithField("feed_url", url).Info("Feed already added")
		return err
	}

	kind := model.KindOf(err)
	e.store.SetLoadError(kind)
	e.store.SetLoadPhase(model.PhaseFailed)
	addFeedOutcomes.WithLabelValues(string(kind)).Inc()
	log.WithFields(log.Fields{
		"feed_url": url,
		"kind":     kind,
	}).Warnf("Failed to add feed: %v", err)
	return err
}

// load performs one fetch and parse of url.
func (e *Engine) load(ctx context.Context, url string) (*rss.Document, error) {
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	doc, err := e.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// assignIDs gives each post a fresh id.
func (e *Engine) assignIDs(posts []model.Post) []model.Post {
	return lo.Map(posts, func(p model.Post, _ int) model.Post {
		p.ID = e.newID()
		return p
	})
}

// MarkRead records a post as opened. Repeated calls are no-ops.
func (e *Engine) MarkRead(postID string) {
	e.store.MarkRead(postID)
}

// SelectPost makes the post with postID the current selection.
func (e *Engine) SelectPost(postID string) (model.Post, error) {
	post, ok := e.store.PostByID(postID)
	if !ok {
		return model.Post{}, fmt.Errorf("select %s: %w", postID, model.ErrPostNotFound)
	}
	e.store.SelectPost(post)
	return post, nil
}

// OpenPost selects a post and marks it read, as a click on it does.
func (e *Engine) OpenPost(postID string) (model.Post, error) {
	post, err := e.SelectPost(postID)
	if err != nil {
		return post, err
	}
	e.store.MarkRead(postID)
	return post, nil
}
