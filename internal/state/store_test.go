package state_test

import (
	"sync"
	"testing"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/bryan-buckman/infowatch/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []state.Change
}

func (r *recorder) OnChange(c state.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) paths() []state.Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]state.Path, len(r.changes))
	for i, c := range r.changes {
		paths[i] = c.Path
	}
	return paths
}

func newStore() (*state.Store, *recorder) {
	s := state.New()
	rec := &recorder{}
	s.Subscribe(rec)
	return s, rec
}

func TestInitialState(t *testing.T) {
	s := state.New()
	assert.Empty(t, s.Feeds())
	assert.Empty(t, s.Posts())
	assert.Equal(t, model.LoadStatus{Phase: model.PhaseIdle}, s.LoadStatus())
	assert.Equal(t, model.FormStatus{IsValid: true}, s.FormStatus())
	assert.Nil(t, s.CurrentPost())
	assert.Empty(t, s.ReadMarks())
}

func TestSetNotifiesInCallOrder(t *testing.T) {
	s, rec := newStore()

	require.NoError(t, s.Set(state.PathLoadPhase, model.PhaseLoading))
	require.NoError(t, s.Set(state.PathLoadPhase, model.PhaseFailed))

	require.Len(t, rec.changes, 2)
	assert.Equal(t, state.Change{Path: state.PathLoadPhase, Value: model.PhaseLoading}, rec.changes[0])
	assert.Equal(t, state.Change{Path: state.PathLoadPhase, Value: model.PhaseFailed}, rec.changes[1])
}

func TestSetSameValueDoesNotNotify(t *testing.T) {
	s, rec := newStore()

	require.NoError(t, s.Set(state.PathFormError, "bad"))
	require.NoError(t, s.Set(state.PathFormError, "bad"))
	require.NoError(t, s.Set(state.PathLoadPhase, model.PhaseIdle))

	assert.Equal(t, []state.Path{state.PathFormError}, rec.paths())
}

func TestSetNotifiesBeforeReturning(t *testing.T) {
	s := state.New()
	var seen model.LoadPhase = -1
	s.Subscribe(state.ObserverFunc(func(c state.Change) {
		if c.Path == state.PathLoadPhase {
			seen = c.Value.(model.LoadPhase)
			// Observers may read the store from inside a notification.
			assert.Equal(t, seen, s.LoadStatus().Phase)
		}
	}))

	s.SetLoadPhase(model.PhaseLoading)
	assert.Equal(t, model.PhaseLoading, seen)
}

func TestSetRejectsUnexpectedValues(t *testing.T) {
	tests := []struct {
		name  string
		path  state.Path
		value any
	}{
		{name: "phase out of domain", path: state.PathLoadPhase, value: model.LoadPhase(9)},
		{name: "phase as string", path: state.PathLoadPhase, value: "loading"},
		{name: "unknown error kind", path: state.PathLoadError, value: model.ErrorKind("Timeout")},
		{name: "form validity as string", path: state.PathFormValid, value: "yes"},
		{name: "form error as int", path: state.PathFormError, value: 3},
		{name: "current post as id", path: state.PathCurrentPost, value: "1"},
		{name: "container path", path: state.PathPosts, value: []model.Post{}},
		{name: "unknown path", path: state.Path("modal.open"), value: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newStore()
			err := s.Set(tt.path, tt.value)
			assert.ErrorIs(t, err, model.ErrUnexpectedState)
			assert.Empty(t, rec.changes)
		})
	}
}

func TestTypedSettersPanicOutsideDomain(t *testing.T) {
	s := state.New()
	assert.Panics(t, func() { s.SetLoadPhase(model.LoadPhase(-1)) })
	assert.Panics(t, func() { s.SetLoadError(model.ErrorKind("bogus")) })
}

func TestGet(t *testing.T) {
	s := state.New()
	require.NoError(t, s.Set(state.PathLoadError, model.KindNetwork))
	require.NoError(t, s.Set(state.PathFormValid, false))

	for _, path := range state.Paths {
		_, err := s.Get(path)
		assert.NoError(t, err, path)
	}

	v, err := s.Get(state.PathLoadError)
	require.NoError(t, err)
	assert.Equal(t, model.KindNetwork, v)

	v, err = s.Get(state.PathFormValid)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = s.Get(state.Path("nope"))
	assert.ErrorIs(t, err, model.ErrUnexpectedState)
}

func TestSetFormStatus(t *testing.T) {
	s, rec := newStore()

	s.SetFormStatus(model.FormStatus{IsValid: false, ErrorMessage: "must be a valid URL"})
	assert.Equal(t, []state.Path{state.PathFormValid, state.PathFormError}, rec.paths())

	s.SetFormStatus(model.FormStatus{IsValid: false, ErrorMessage: "RSS already exists"})
	assert.Equal(t, []state.Path{state.PathFormValid, state.PathFormError, state.PathFormError}, rec.paths())
	assert.Equal(t, "RSS already exists", s.FormStatus().ErrorMessage)
}

func TestAddFeedPrependsAndNotifiesContainers(t *testing.T) {
	s, rec := newStore()

	require.NoError(t, s.AddFeed(model.Feed{URL: "https://a.example/rss", Title: "A"},
		[]model.Post{{ID: "1", Link: "https://a.example/1"}}))
	require.NoError(t, s.AddFeed(model.Feed{URL: "https://b.example/rss", Title: "B"},
		[]model.Post{{ID: "2", Link: "https://b.example/1"}, {ID: "3", Link: "https://b.example/2"}}))

	assert.Equal(t, []string{"https://b.example/rss", "https://a.example/rss"}, s.FeedURLs())
	ids := []string{}
	for _, p := range s.Posts() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"2", "3", "1"}, ids)
	assert.Equal(t, []state.Path{state.PathFeeds, state.PathPosts, state.PathFeeds, state.PathPosts}, rec.paths())

	last := rec.changes[len(rec.changes)-1]
	assert.Len(t, last.Value.([]model.Post), 3)
}

func TestAddFeedRejectsDuplicateURL(t *testing.T) {
	s, rec := newStore()
	require.NoError(t, s.AddFeed(model.Feed{URL: "https://a.example/rss"}, nil))

	err := s.AddFeed(model.Feed{URL: "https://a.example/rss"}, []model.Post{{ID: "1"}})
	assert.ErrorIs(t, err, model.ErrDuplicateURL)
	assert.Len(t, s.Feeds(), 1)
	assert.Empty(t, s.Posts())
	assert.Equal(t, []state.Path{state.PathFeeds}, rec.paths())
}

func TestMergePosts(t *testing.T) {
	s, rec := newStore()
	require.NoError(t, s.AddFeed(model.Feed{URL: "u"}, []model.Post{{ID: "1", Link: "l1"}}))

	var known []model.Post
	added := s.MergePosts(func(k []model.Post) []model.Post {
		known = k
		return []model.Post{{ID: "2", Link: "l2"}}
	})
	assert.Equal(t, 1, added)
	assert.Len(t, known, 1)
	assert.Equal(t, "2", s.Posts()[0].ID)

	added = s.MergePosts(func([]model.Post) []model.Post { return nil })
	assert.Zero(t, added)
	assert.Equal(t, []state.Path{state.PathFeeds, state.PathPosts, state.PathPosts}, rec.paths())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	s, rec := newStore()
	require.NoError(t, s.AddFeed(model.Feed{URL: "u"}, []model.Post{{ID: "1"}, {ID: "2"}}))

	assert.True(t, s.MarkRead("1"))
	assert.False(t, s.MarkRead("1"))
	assert.False(t, s.MarkRead("missing"))

	assert.Equal(t, []string{"1"}, s.ReadMarks())
	assert.True(t, s.IsRead("1"))
	assert.False(t, s.IsRead("2"))
	assert.Equal(t, []state.Path{state.PathFeeds, state.PathPosts, state.PathReadMarks}, rec.paths())
}

func TestSelectPost(t *testing.T) {
	s, rec := newStore()
	a := model.Post{ID: "1", Title: "a"}
	b := model.Post{ID: "2", Title: "b"}

	s.SelectPost(a)
	s.SelectPost(a)
	require.NoError(t, s.Set(state.PathCurrentPost, &b))

	require.NotNil(t, s.CurrentPost())
	assert.Equal(t, b, *s.CurrentPost())
	assert.Equal(t, []state.Path{state.PathCurrentPost, state.PathCurrentPost}, rec.paths())

	s.ClearSelection()
	assert.Nil(t, s.CurrentPost())
	assert.Nil(t, rec.changes[len(rec.changes)-1].Value.(*model.Post))
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	s := state.New()
	require.NoError(t, s.AddFeed(model.Feed{URL: "u", Title: "t"}, []model.Post{{ID: "1", Title: "x"}}))

	posts := s.Posts()
	posts[0].Title = "changed"
	feeds := s.Feeds()
	feeds[0].Title = "changed"

	assert.Equal(t, "x", s.Posts()[0].Title)
	assert.Equal(t, "t", s.Feeds()[0].Title)
}

func TestUnsubscribe(t *testing.T) {
	s := state.New()
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec)

	s.SetLoadPhase(model.PhaseLoading)
	unsubscribe()
	s.SetLoadPhase(model.PhaseIdle)

	assert.Len(t, rec.changes, 1)
}

func TestConcurrentMutationsKeepNotificationOrder(t *testing.T) {
	s := state.New()
	require.NoError(t, s.AddFeed(model.Feed{URL: "u"}, nil))

	var lengths []int
	s.Subscribe(state.ObserverFunc(func(c state.Change) {
		if c.Path == state.PathPosts {
			lengths = append(lengths, len(c.Value.([]model.Post)))
		}
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MergePosts(func([]model.Post) []model.Post {
				return []model.Post{{ID: "x"}}
			})
		}()
	}
	wg.Wait()

	require.Len(t, lengths, 20)
	for i, n := range lengths {
		assert.Equal(t, i+1, n)
	}
}
