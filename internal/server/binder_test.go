package server_test

import (
	"testing"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/bryan-buckman/infowatch/internal/server"
	"github.com/bryan-buckman/infowatch/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	post := &model.Post{ID: "1", Title: "Hello"}

	tests := []struct {
		name     string
		change   state.Change
		expected string
	}{
		{name: "loading", change: state.Change{Path: state.PathLoadPhase, Value: model.PhaseLoading}, expected: server.MsgLoading},
		{name: "idle", change: state.Change{Path: state.PathLoadPhase, Value: model.PhaseIdle}, expected: server.MsgSuccess},
		{name: "failed", change: state.Change{Path: state.PathLoadPhase, Value: model.PhaseFailed}, expected: ""},
		{name: "parsing", change: state.Change{Path: state.PathLoadError, Value: model.KindParsing}, expected: server.MsgInvalidRSS},
		{name: "network", change: state.Change{Path: state.PathLoadError, Value: model.KindNetwork}, expected: server.MsgNetError},
		{name: "unknown", change: state.Change{Path: state.PathLoadError, Value: model.KindUnknown}, expected: server.MsgUnknownErr},
		{name: "cleared", change: state.Change{Path: state.PathLoadError, Value: model.KindNone}, expected: ""},
		{name: "form error", change: state.Change{Path: state.PathFormError, Value: "RSS already exists"}, expected: "RSS already exists"},
		{name: "selection", change: state.Change{Path: state.PathCurrentPost, Value: post}, expected: "viewing Hello"},
		{name: "no selection", change: state.Change{Path: state.PathCurrentPost, Value: (*model.Post)(nil)}, expected: ""},
		{name: "posts", change: state.Change{Path: state.PathPosts, Value: []model.Post{}}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, server.Describe(tt.change))
		})
	}
}

func TestDescribePanicsOutsideDomain(t *testing.T) {
	assert.Panics(t, func() {
		server.Describe(state.Change{Path: state.PathLoadPhase, Value: model.LoadPhase(5)})
	})
	assert.Panics(t, func() {
		server.Describe(state.Change{Path: state.PathLoadError, Value: model.ErrorKind("Timeout")})
	})
	assert.Panics(t, func() {
		server.Describe(state.Change{Path: state.Path("modal.open"), Value: true})
	})
}

func TestLogBinderHandlesEveryPath(t *testing.T) {
	s := state.New()
	s.Subscribe(server.LogBinder())

	assert.NotPanics(t, func() {
		s.SetLoadPhase(model.PhaseLoading)
		s.SetLoadError(model.KindNetwork)
		s.SetLoadPhase(model.PhaseFailed)
		s.SetFormStatus(model.FormStatus{IsValid: false, ErrorMessage: "must be a valid URL"})
		_ = s.AddFeed(model.Feed{URL: "u"}, []model.Post{{ID: "1", Title: "t"}})
		s.MarkRead("1")
		s.SelectPost(model.Post{ID: "1", Title: "t"})
		s.ClearSelection()
	})
}
