package rss

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/net/html/charset"
)

// Document is the structured result of parsing a feed document. Feed.URL
// and Post.ID are left empty; the engine assigns them.
type Document struct {
	Feed  model.Feed
	Items []model.Post
}

// Parser turns raw RSS text into a Document.
//
// The channel must contain a title and a description element, and by
// default every item must contain title, description and link elements.
// An element that is present but empty is accepted. With Lenient set,
// items lacking one of those elements are dropped instead.
type Parser struct {
	Lenient bool
}

// NewParser returns a strict parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses document. Every failure wraps model.ErrParse.
func (p *Parser) Parse(document string) (*Document, error) {
	// rss.Parser keeps per-call state, so one is built per document.
	rp := &rss.Parser{}
	feed, err := rp.Parse(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
	}

	channel, items, err := scanElements(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
	}
	if missing := channel.missing(fieldTitle, fieldDescription); missing != "" {
		return nil, fmt.Errorf("%w: channel has no %s", model.ErrParse, missing)
	}

	doc := &Document{
		Feed: model.Feed{
			Title:       strings.TrimSpace(feed.Title),
			Description: strings.TrimSpace(feed.Description),
		},
	}

	doc.Items = make([]model.Post, 0, len(feed.Items))
	for i, item := range feed.Items {
		var present fields
		if i < len(items) {
			present = items[i]
		}
		if missing := present.missing(fieldTitle, fieldDescription, fieldLink); missing != "" {
			if p.Lenient {
				continue
			}
			return nil, fmt.Errorf("%w: item %d has no %s", model.ErrParse, i, missing)
		}
		doc.Items = append(doc.Items, model.Post{
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			Link:        strings.TrimSpace(item.Link),
		})
	}
	return doc, nil
}

// fields records which un-namespaced child elements were seen.
type fields uint8

const (
	fieldTitle fields = 1 << iota
	fieldDescription
	fieldLink
)

var fieldNames = map[fields]string{
	fieldTitle:       "title",
	fieldDescription: "description",
	fieldLink:        "link",
}

func fieldOf(local string) fields {
	switch local {
	case "title":
		return fieldTitle
	case "description":
		return fieldDescription
	case "link":
		return fieldLink
	}
	return 0
}

// missing returns the name of the first wanted field not present.
func (f fields) missing(want ...fields) string {
	for _, w := range want {
		if f&w == 0 {
			return fieldNames[w]
		}
	}
	return ""
}

// scanElements walks document and reports which title, description and
// link elements are direct children of the channel and of each item, in
// document order. gofeed fills absent and empty elements alike with "".
func scanElements(document string) (channel fields, items []fields, err error) {
	d := xml.NewDecoder(strings.NewReader(document))
	d.Strict = false
	d.CharsetReader = charset.NewReaderLabel

	var stack []string
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return channel, items, nil
		}
		if err != nil {
			return 0, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if t.Name.Space != "" {
				name = t.Name.Space + ":" + name
			}
			stack = append(stack, name)
			depth := len(stack)
			switch {
			case depth == 3 && stack[1] == "channel" && name == "item":
				items = append(items, 0)
			case depth == 3 && stack[1] == "channel":
				channel |= fieldOf(name)
			case depth == 4 && stack[1] == "channel" && stack[2] == "item":
				items[len(items)-1] |= fieldOf(name)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}
