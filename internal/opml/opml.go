// Package opml handles importing and exporting OPML subscription lists.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/bryan-buckman/infowatch/internal/model"
	"github.com/samber/lo"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a single outline element: a feed, or a group of outlines.
type Outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLURL      string    `xml:"xmlUrl,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML document and returns the feed URLs it lists, in
// document order and without repeats. Grouping outlines are flattened.
func Parse(r io.Reader) ([]string, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var urls []string
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				urls = append(urls, o.XMLURL)
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return lo.Uniq(urls), nil
}

// Export renders feeds as a flat OPML 2.0 document.
func Export(title string, feeds []model.Feed, now time.Time) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: now.Format(time.RFC1123Z),
		},
		Body: Body{
			Outlines: lo.Map(feeds, func(f model.Feed, _ int) Outline {
				return Outline{
					Text:        f.Title,
					Title:       f.Title,
					Description: f.Description,
					Type:        "rss",
					XMLURL:      f.URL,
				}
			}),
		},
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
