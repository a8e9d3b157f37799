package backend

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/h5media/podingest/backend/data"
	"golang.org/x/net/html/charset"
	log "gopkg.in/inconshreveable/log15.v2"
)

// Elements that carry text but need no start or end hook of their own.
var regularElements = map[string]bool{
	"rss":           true,
	"title":         true,
	"link":          true,
	"description":   true,
	"pubDate":       true,
	"lastBuildDate": true,
}

type elementHooks struct {
	start func(p *feedParser, attrs []xml.Attr) error
	end   func(p *feedParser) error
}

// Elements that drive the podcast and episode life cycle. A special element
// without a start or end hook is reported to the ErrorCollector.
var specialElements = map[string]elementHooks{
	"channel":   {start: (*feedParser).startChannel, end: (*feedParser).endChannel},
	"item":      {start: (*feedParser).startItem, end: (*feedParser).endItem},
	"enclosure": {start: (*feedParser).startEnclosure, end: (*feedParser).endEnclosure},
}

// textRoute is the pair of innermost open elements when text is closed.
type textRoute struct {
	parent string
	child  string
}

// textRoutes assigns element text to record fields. Adding a mapping is a
// matter of adding an entry here.
var textRoutes = map[textRoute]func(p *feedParser, text string){
	{"channel", "title"}: func(p *feedParser, text string) {
		p.podcast.Title = text
	},
	{"channel", "link"}: func(p *feedParser, text string) {
		p.podcast.Website = text
	},
	{"channel", "description"}: func(p *feedParser, text string) {
		p.podcast.Description = text
	},
	{"item", "title"}: func(p *feedParser, text string) {
		if p.episode != nil {
			p.episode.Title = text
		}
	},
	{"item", "pubDate"}: func(p *feedParser, text string) {
		if p.episode != nil {
			p.setPublishTime(text)
		}
	},
	{"item", "description"}: func(p *feedParser, text string) {
		if p.episode != nil {
			p.episode.Description = text
		}
	},
}

// parseFrame is an open element and the offset in feedParser.text where its
// character data begins. Text of nested elements stays in the buffer so mixed
// content such as "Hello <b>bold</b> world" reaches the enclosing element.
type parseFrame struct {
	name      string
	textStart int
}

// feedParser is the state of one forward-only pass over a feed document. It
// must not be shared between goroutines.
type feedParser struct {
	ctx        context.Context
	feedURL    string
	ownerID    int32
	layouts    []string
	reconciler *Reconciler
	errors     *ErrorCollector
	result     *IngestResult
	logger     log.Logger

	root      string
	pathStack []parseFrame
	text      bytes.Buffer
	podcast   *data.Podcast
	episode   *data.Episode
}

func newFeedParser(ctx context.Context, feedURL string, ownerID int32, reconciler *Reconciler, result *IngestResult, logger log.Logger) *feedParser {
	return &feedParser{
		ctx:        ctx,
		feedURL:    feedURL,
		ownerID:    ownerID,
		layouts:    DefaultTimeLayouts,
		reconciler: reconciler,
		errors:     result.Errors,
		result:     result,
		logger:     logger,
	}
}

// elementName keeps namespaced elements such as itunes:title distinct from
// their plain RSS counterparts.
func elementName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// parse streams body through the state machine. Podcasts and episodes are
// persisted as their elements close, so a fatal error leaves whatever was
// saved before it in place.
func (p *feedParser) parse(body []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	for {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("malformed feed %s: %w", p.feedURL, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			err = p.startElement(elementName(t.Name), t.Attr)
		case xml.EndElement:
			err = p.endElement(elementName(t.Name))
		case xml.CharData:
			p.characters(t)
		}
		if err != nil {
			return err
		}
	}

	if p.root == "" {
		return &NotAnRSSDocumentError{}
	}

	return nil
}

func (p *feedParser) startElement(name string, attrs []xml.Attr) error {
	if p.root == "" {
		if name != "rss" {
			return &NotAnRSSDocumentError{Root: name}
		}
		p.root = name
	}

	p.pathStack = append(p.pathStack, parseFrame{name: name, textStart: p.text.Len()})

	if regularElements[name] {
		return nil
	}

	hooks, ok := specialElements[name]
	if !ok {
		return nil
	}
	if hooks.start == nil {
		p.errors.Add("Unsupported start tag %s", name)
		return nil
	}

	return hooks.start(p, attrs)
}

func (p *feedParser) endElement(name string) error {
	p.routeText()
	if len(p.pathStack) > 0 {
		closed := p.pathStack[len(p.pathStack)-1]
		p.pathStack = p.pathStack[:len(p.pathStack)-1]
		if !p.collectingText() {
			p.text.Truncate(closed.textStart)
		}
	}

	if regularElements[name] {
		return nil
	}

	hooks, ok := specialElements[name]
	if !ok {
		return nil
	}
	if hooks.end == nil {
		p.errors.Add("Unsupported end tag %s", name)
		return nil
	}

	return hooks.end(p)
}

func (p *feedParser) characters(data []byte) {
	if p.collectingText() {
		p.text.Write(data)
	}
}

// routeText hands the text of the element being closed to the field named
// by the two innermost open elements. Empty text never overwrites a field.
func (p *feedParser) routeText() {
	if len(p.pathStack) < 2 {
		return
	}

	route := p.currentRoute()
	assign, ok := textRoutes[route]
	if !ok {
		return
	}

	top := p.pathStack[len(p.pathStack)-1]
	text := strings.TrimSpace(string(p.text.Bytes()[top.textStart:]))
	if text == "" {
		return
	}

	if route.parent == "channel" && p.podcast == nil {
		return
	}

	assign(p, text)
}

func (p *feedParser) currentRoute() textRoute {
	n := len(p.pathStack)
	return textRoute{parent: p.pathStack[n-2].name, child: p.pathStack[n-1].name}
}

// collectingText reports whether any open element is the target of a text
// route and so still needs the character data read so far.
func (p *feedParser) collectingText() bool {
	for i := 1; i < len(p.pathStack); i++ {
		if _, ok := textRoutes[textRoute{parent: p.pathStack[i-1].name, child: p.pathStack[i].name}]; ok {
			return true
		}
	}
	return false
}

func (p *feedParser) setPublishTime(text string) {
	t, err := ParseTime(text, p.layouts)
	if err != nil {
		p.logger.Debug("unparseable pubDate", "value", text)
		return
	}
	p.episode.PublishTime = t
}

func (p *feedParser) startChannel(attrs []xml.Attr) error {
	podcast, err := p.reconciler.LookupPodcast(p.ctx, p.feedURL)
	if err != nil {
		return err
	}
	if podcast == nil {
		podcast = &data.Podcast{FeedURL: p.feedURL}
	}

	p.podcast = podcast
	return nil
}

func (p *feedParser) endChannel() error {
	if p.podcast == nil {
		return nil
	}

	err := p.reconciler.SavePodcast(p.ctx, p.podcast)
	if err != nil {
		return err
	}

	p.result.PodcastID = p.podcast.ID
	p.result.PodcastsSaved++
	return nil
}

func (p *feedParser) startItem(attrs []xml.Attr) error {
	if p.podcast == nil {
		p.errors.Add("podcast not set")
		return nil
	}

	if !p.podcast.IsPersisted() {
		err := p.reconciler.SavePodcast(p.ctx, p.podcast)
		if err != nil {
			return err
		}
		p.result.PodcastID = p.podcast.ID
	}

	p.episode = &data.Episode{
		OwnerID:   p.ownerID,
		PodcastID: p.podcast.ID,
	}
	return nil
}

func (p *feedParser) endItem() error {
	episode := p.episode
	p.episode = nil

	if episode == nil {
		return nil
	}
	if episode.URL == "" {
		p.errors.Add("item has no enclosure url")
		return nil
	}

	inserted, err := p.reconciler.SaveEpisode(p.ctx, episode)
	if err != nil {
		return err
	}

	if inserted {
		p.result.EpisodesInserted++
	} else {
		p.result.EpisodesUpdated++
	}
	return nil
}

func (p *feedParser) startEnclosure(attrs []xml.Attr) error {
	if p.episode == nil {
		return nil
	}

	for _, attr := range attrs {
		if attr.Name.Space == "" && attr.Name.Local == "url" {
			p.episode.URL = strings.TrimSpace(attr.Value)
		}
	}
	return nil
}

// endEnclosure has nothing to do; the URL is taken from the start tag.
func (p *feedParser) endEnclosure() error {
	return nil
}
