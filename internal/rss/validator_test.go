package rss_test

import (
	"testing"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/bryan-buckman/infowatch/internal/rss"
	"github.com/stretchr/testify/assert"
)

func TestValidateLink(t *testing.T) {
	known := []string{"https://ru.hexlet.io/lessons.rss"}

	tests := []struct {
		name      string
		candidate string
		expected  error
	}{
		{name: "valid new url", candidate: "https://example.com/feed.xml", expected: nil},
		{name: "plain word", candidate: "wrong", expected: model.ErrInvalidURL},
		{name: "empty", candidate: "", expected: model.ErrInvalidURL},
		{name: "relative path", candidate: "/feed.xml", expected: model.ErrInvalidURL},
		{name: "no host", candidate: "https://", expected: model.ErrInvalidURL},
		{name: "unsupported scheme", candidate: "ftp://example.com/feed", expected: model.ErrInvalidURL},
		{name: "duplicate", candidate: "https://ru.hexlet.io/lessons.rss", expected: model.ErrDuplicateURL},
		{name: "near duplicate is new", candidate: "https://ru.hexlet.io/lessons.rss?x=1", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rss.ValidateLink(tt.candidate, known)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestValidateLinkSyntaxBeforeUniqueness(t *testing.T) {
	err := rss.ValidateLink("wrong", []string{"wrong"})
	assert.ErrorIs(t, err, model.ErrInvalidURL)
	assert.NotErrorIs(t, err, model.ErrDuplicateURL)
}
