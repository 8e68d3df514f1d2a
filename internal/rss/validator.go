package rss

import (
	"fmt"
	"net/url"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/samber/lo"
)

// ValidateLink checks that candidate is an absolute http(s) URL that is not
// already in known. Syntax is checked first and the first failure wins.
func ValidateLink(candidate string, known []string) error {
	u, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", model.ErrInvalidURL, candidate)
	}
	if lo.Contains(known, candidate) {
		return fmt.Errorf("%w: %q", model.ErrDuplicateURL, candidate)
	}
	return nil
}
