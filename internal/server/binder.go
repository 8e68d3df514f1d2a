package server

import (
	"fmt"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/bryan-buckman/infowatch/internal/state"
	log "github.com/sirupsen/logrus"
)

// User-facing status messages.
const (
	MsgLoading    = "loading feed"
	MsgSuccess    = "RSS loaded successfully"
	MsgInvalidRSS = "resource does not contain valid RSS"
	MsgNetError   = "network error"
	MsgUnknownErr = "unknown error"
)

// Describe renders a change as a status line for the person using the
// form. It returns "" for changes that carry no message. A phase or error
// kind outside its domain is a programming error and panics.
func Describe(c state.Change) string {
	switch c.Path {
	case state.PathLoadPhase:
		phase := c.Value.(model.LoadPhase)
		switch phase {
		case model.PhaseLoading:
			return MsgLoading
		case model.PhaseIdle:
			return MsgSuccess
		case model.PhaseFailed:
			return ""
		default:
			panic(fmt.Sprintf("unexpected state: %v", phase))
		}
	case state.PathLoadError:
		kind := c.Value.(model.ErrorKind)
		switch kind {
		case model.KindNone:
			return ""
		case model.KindParsing:
			return MsgInvalidRSS
		case model.KindNetwork:
			return MsgNetError
		case model.KindUnknown:
			return MsgUnknownErr
		default:
			panic(fmt.Sprintf("unexpected error: %v", kind))
		}
	case state.PathFormError:
		return c.Value.(string)
	case state.PathCurrentPost:
		if p := c.Value.(*model.Post); p != nil {
			return "viewing " + p.Title
		}
		return ""
	case state.PathFeeds, state.PathPosts, state.PathReadMarks, state.PathFormValid:
		return ""
	default:
		panic(fmt.Sprintf("unexpected path: %s", c.Path))
	}
}

// LogBinder logs every change at debug level and its status message, if
// any, at info level.
func LogBinder() state.Observer {
	return state.ObserverFunc(func(c state.Change) {
		entry := log.WithField("path", c.Path)
		switch v := c.Value.(type) {
		case []model.Feed:
			entry = entry.WithField("count", len(v))
		case []model.Post:
			entry = entry.WithField("count", len(v))
		case []string:
			entry = entry.WithField("count", len(v))
		default:
			entry = entry.WithField("value", v)
		}
		entry.Debug("State changed")

		if msg := Describe(c); msg != "" {
			log.WithField("path", c.Path).Info(msg)
		}
	})
}
