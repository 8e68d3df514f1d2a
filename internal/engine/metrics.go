package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infowatch_poll_rounds_total",
		Help: "Number of completed poll rounds",
	})

	pollRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "infowatch_poll_round_duration_seconds",
		Help:    "Time taken by one poll round, from first fetch to merge",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms up to ~25s
	})

	feedFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infowatch_feed_failures_total",
		Help: "Per-feed fetch or parse failures during poll rounds",
	}, []string{"kind"})

	newPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infowatch_new_posts_total",
		Help: "Posts discovered by add-feed and poll rounds",
	})

	addFeedOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infowatch_add_feed_total",
		Help: "Add-feed attempts by outcome",
	}, []string{"outcome"})

	knownFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "infowatch_feeds",
		Help: "Number of subscribed feeds",
	})
)
