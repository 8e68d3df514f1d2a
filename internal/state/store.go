// Package state holds the canonical application state and notifies
// observers of every attribute that changes.
package state

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bryan-buckman/infowatch/internal/model"
)

// Path locates one observable attribute of the state.
type Path string

// Known paths. Container paths (feeds, posts, read marks) change only
// through mutator methods; leaf paths may also be written with Set.
const (
	PathFeeds       Path = "feeds"
	PathPosts       Path = "posts"
	PathLoadPhase   Path = "loadStatus.state"
	PathLoadError   Path = "loadStatus.errorKind"
	PathFormValid   Path = "form.isValid"
	PathFormError   Path = "form.error"
	PathReadMarks   Path = "readPostIds"
	PathCurrentPost Path = "modal.currentPost"
)

// Paths lists every known path.
var Paths = []Path{
	PathFeeds, PathPosts, PathLoadPhase, PathLoadError,
	PathFormValid, PathFormError, PathReadMarks, PathCurrentPost,
}

// Change is one notification: the path that changed and its new value.
//
// Value types per path: []model.Feed, []model.Post, model.LoadPhase,
// model.ErrorKind, bool, string, []string and *model.Post respectively.
type Change struct {
	Path  Path
	Value any
}

// Observer receives changes synchronously, before the mutating call
// returns. Observers may read the store but must not mutate it.
type Observer interface {
	OnChange(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// OnChange calls f(c).
func (f ObserverFunc) OnChange(c Change) { f(c) }

// Store is the single source of truth. All methods are safe for
// concurrent use; mutations and their notifications are serialized so
// observers see changes in the order they were applied.
type Store struct {
	// dispatch is held across a mutation and its notifications.
	dispatch sync.Mutex
	mu       sync.RWMutex

	feeds     []model.Feed
	posts     []model.Post
	load      model.LoadStatus
	form      model.FormStatus
	readMarks map[string]struct{}
	readOrder []string
	current   *model.Post

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// New creates an empty store: no feeds, idle load status, valid form.
func New() *Store {
	return &Store{
		form:      model.FormStatus{IsValid: true},
		readMarks: make(map[string]struct{}),
		observers: make(map[int]Observer),
	}
}

// Subscribe registers o and returns a function that removes it.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// mutate runs fn under the write lock and then delivers the changes it
// reports, in order, while still holding the dispatch lock.
func (s *Store) mutate(fn func() []Change) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	changes := fn()
	s.mu.Unlock()

	if len(changes) == 0 {
		return
	}

	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, c := range changes {
		for _, o := range observers {
			o.OnChange(c)
		}
	}
}

// --- Readers ---

// Feeds returns the feeds, most recently added first.
func (s *Store) Feeds() []model.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.feeds)
}

// FeedURLs returns the URLs of all known feeds.
func (s *Store) FeedURLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, len(s.feeds))
	for i, f := range s.feeds {
		urls[i] = f.URL
	}
	return urls
}

// Posts returns all posts, newest batch first.
func (s *Store) Posts() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.posts)
}

// PostByID looks up a post.
func (s *Store) PostByID(id string) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, true
		}
	}
	return model.Post{}, false
}

// LoadStatus returns the latest add-feed outcome.
func (s *Store) LoadStatus() model.LoadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load
}

// FormStatus returns the latest validation outcome.
func (s *Store) FormStatus() model.FormStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// ReadMarks returns read post ids in the order they were marked.
func (s *Store) ReadMarks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.readOrder)
}

// IsRead reports whether the post has been opened.
func (s *Store) IsRead(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.readMarks[id]
	return ok
}

// CurrentPost returns the selected post, or nil.
func (s *Store) CurrentPost() *model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePost(s.current)
}

// Get returns the value at path using the same types as Change.Value.
func (s *Store) Get(path Path) (any, error) {
	switch path {
	case PathFeeds:
		return s.Feeds(), nil
	case PathPosts:
		return s.Posts(), nil
	case PathLoadPhase:
		return s.LoadStatus().Phase, nil
	case PathLoadError:
		return s.LoadStatus().ErrorKind, nil
	case PathFormValid:
		return s.FormStatus().IsValid, nil
	case PathFormError:
		return s.FormStatus().ErrorMessage, nil
	case PathReadMarks:
		return s.ReadMarks(), nil
	case PathCurrentPost:
		return s.CurrentPost(), nil
	default:
		return nil, fmt.Errorf("get %q: %w", path, model.ErrUnexpectedState)
	}
}

// --- Leaf mutators ---

// Set writes a leaf path. A value of the wrong type or outside the path's
// domain, an unknown path, or a container path returns an error wrapping
// model.ErrUnexpectedState and leaves the state untouched.
func (s *Store) Set(path Path, value any) error {
	switch path {
	case PathLoadPhase:
		v, ok := value.(model.LoadPhase)
		if !ok || !v.Valid() {
			return unexpected(path, value)
		}
		s.SetLoadPhase(v)
	case PathLoadError:
		v, ok := value.(model.ErrorKind)
		if !ok || !v.Valid() {
			return unexpected(path, value)
		}
		s.SetLoadError(v)
	case PathFormValid:
		v, ok := value.(bool)
		if !ok {
			return unexpected(path, value)
		}
		s.setFormField(path, func() bool {
			if s.form.IsValid == v {
				return false
			}
			s.form.IsValid = v
			return true
		}, v)
	case PathFormError:
		v, ok := value.(string)
		if !ok {
			return unexpected(path, value)
		}
		s.setFormField(path, func() bool {
			if s.form.ErrorMessage == v {
				return false
			}
			s.form.ErrorMessage = v
			return true
		}, v)
	case PathCurrentPost:
		switch v := value.(type) {
		case model.Post:
			s.SelectPost(v)
		case *model.Post:
			if v == nil {
				s.ClearSelection()
			} else {
				s.SelectPost(*v)
			}
		default:
			return unexpected(path, value)
		}
	default:
		return unexpected(path, value)
	}
	return nil
}

func unexpected(path Path, value any) error {
	return fmt.Errorf("set %q to %v (%T): %w", path, value, value, model.ErrUnexpectedState)
}

func (s *Store) setFormField(path Path, apply func() bool, value any) {
	s.mutate(func() []Change {
		if !apply() {
			return nil
		}
		return []Change{{Path: path, Value: value}}
	})
}

// SetLoadPhase updates loadStatus.state. It panics on a phase outside the
// three known values.
func (s *Store) SetLoadPhase(phase model.LoadPhase) {
	if !phase.Valid() {
		panic(fmt.Sprintf("unexpected state: %d", phase))
	}
	s.mutate(func() []Change {
		if s.load.Phase == phase {
			return nil
		}
		s.load.Phase = phase
		return []Change{{Path: PathLoadPhase, Value: phase}}
	})
}

// SetLoadError updates loadStatus.errorKind. It panics on an unknown kind.
func (s *Store) SetLoadError(kind model.ErrorKind) {
	if !kind.Valid() {
		panic(fmt.Sprintf("unexpected error: %q", kind))
	}
	s.mutate(func() []Change {
		if s.load.ErrorKind == kind {
			return nil
		}
		s.load.ErrorKind = kind
		return []Change{{Path: PathLoadError, Value: kind}}
	})
}

// SetFormStatus writes both form leaves as one mutation, validity first.
func (s *Store) SetFormStatus(status model.FormStatus) {
	s.mutate(func() []Change {
		var changes []Change
		if s.form.IsValid != status.IsValid {
			s.form.IsValid = status.IsValid
			changes = append(changes, Change{Path: PathFormValid, Value: status.IsValid})
		}
		if s.form.ErrorMessage != status.ErrorMessage {
			s.form.ErrorMessage = status.ErrorMessage
			changes = append(changes, Change{Path: PathFormError, Value: status.ErrorMessage})
		}
		return changes
	})
}

// SelectPost replaces the current selection wholesale.
func (s *Store) SelectPost(post model.Post) {
	s.mutate(func() []Change {
		if s.current != nil && *s.current == post {
			return nil
		}
		s.current = &post
		return []Change{{Path: PathCurrentPost, Value: clonePost(s.current)}}
	})
}

// ClearSelection removes the current selection.
func (s *Store) ClearSelection() {
	s.mutate(func() []Change {
		if s.current == nil {
			return nil
		}
		s.current = nil
		return []Change{{Path: PathCurrentPost, Value: (*model.Post)(nil)}}
	})
}

// --- Container mutators ---

// AddFeed prepends feed and its posts in one mutation. It fails with
// model.ErrDuplicateURL if a feed with the same URL is already known.
// Observers see the feeds change before the posts change.
func (s *Store) AddFeed(feed model.Feed, posts []model.Post) error {
	var err error
	s.mutate(func() []Change {
		for _, f := range s.feeds {
			if f.URL == feed.URL {
				err = fmt.Errorf("add feed %s: %w", feed.URL, model.ErrDuplicateURL)
				return nil
			}
		}
		s.feeds = append([]model.Feed{feed}, s.feeds...)
		changes := []Change{{Path: PathFeeds, Value: slices.Clone(s.feeds)}}
		if len(posts) > 0 {
			s.posts = append(slices.Clone(posts), s.posts...)
			changes = append(changes, Change{Path: PathPosts, Value: slices.Clone(s.posts)})
		}
		return changes
	})
	return err
}

// MergePosts calls pick with the currently known posts while holding the
// write lock and prepends whatever it returns as one batch. It returns the
// number of posts added. pick must not call back into the store.
func (s *Store) MergePosts(pick func(known []model.Post) []model.Post) int {
	var added int
	s.mutate(func() []Change {
		fresh := pick(slices.Clone(s.posts))
		if len(fresh) == 0 {
			return nil
		}
		added = len(fresh)
		s.posts = append(slices.Clone(fresh), s.posts...)
		return []Change{{Path: PathPosts, Value: slices.Clone(s.posts)}}
	})
	return added
}

// MarkRead records id as read. It is a no-op for an id already marked or
// not belonging to a known post, and reports whether the set grew.
func (s *Store) MarkRead(id string) bool {
	var added bool
	s.mutate(func() []Change {
		if _, ok := s.readMarks[id]; ok {
			return nil
		}
		known := slices.ContainsFunc(s.posts, func(p model.Post) bool { return p.ID == id })
		if !known {
			return nil
		}
		s.readMarks[id] = struct{}{}
		s.readOrder = append(s.readOrder, id)
		added = true
		return []Change{{Path: PathReadMarks, Value: slices.Clone(s.readOrder)}}
	})
	return added
}

func clonePost(p *model.Post) *model.Post {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
