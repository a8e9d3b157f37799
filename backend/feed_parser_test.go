package backend

import (
	"context"
	"encoding/xml"
	"testing"

	"github.com/h5media/podingest/backend/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementName(t *testing.T) {
	assert.Equal(t, "title", elementName(xml.Name{Local: "title"}))
	assert.Equal(t, "http://www.itunes.com/dtds/podcast-1.0.dtd:title",
		elementName(xml.Name{Space: "http://www.itunes.com/dtds/podcast-1.0.dtd", Local: "title"}))
}

func parseFeed(t *testing.T, store data.Store, body string) (*IngestResult, error) {
	result := newIngestResult(exampleFeedURL)
	reconciler := NewReconciler(store, result.Errors, discardLogger())
	parser := newFeedParser(context.Background(), exampleFeedURL, 1, reconciler, result, discardLogger())
	return result, parser.parse([]byte(body))
}

func TestFeedParserRoutesOnlyDirectChildren(t *testing.T) {
	store := data.NewMemoryStore()
	body := `<rss><channel>
  <title>Show</title>
  <image><title>Logo title</title><link>https://example.com/logo</link></image>
  <item>
    <source><title>Somewhere else</title></source>
    <title>Episode</title>
    <enclosure url="  https://example.com/a.mp3  "/>
  </item>
</channel></rss>`

	result, err := parseFeed(t, store, body)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Errors.Len())

	podcast := requirePodcast(t, store, exampleFeedURL)
	assert.Equal(t, "Show", podcast.Title)
	assert.Equal(t, "", podcast.Website)

	episode, err := store.SelectEpisodeByURL(context.Background(), "https://example.com/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Episode", episode.Title)
}

func TestFeedParserPersistsPodcastBeforeFirstEpisode(t *testing.T) {
	store := data.NewMemoryStore()
	body := `<rss><channel>
  <item><enclosure url="https://example.com/a.mp3"/></item>
  <title>Title After Items</title>
</channel></rss>`

	result, err := parseFeed(t, store, body)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PodcastsSaved)
	assert.Equal(t, 1, result.EpisodesInserted)

	podcast := requirePodcast(t, store, exampleFeedURL)
	assert.Equal(t, "Title After Items", podcast.Title)
	assert.Equal(t, result.PodcastID, podcast.ID)

	episode, err := store.SelectEpisodeByURL(context.Background(), "https://example.com/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, podcast.ID, episode.PodcastID)
}

func TestFeedParserEnclosureOutsideItemIsIgnored(t *testing.T) {
	store := data.NewMemoryStore()

	result, err := parseFeed(t, store, `<rss><channel><enclosure url="https://example.com/a.mp3"/></channel></rss>`)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Errors.Len())

	_, err = store.SelectEpisodeByURL(context.Background(), "https://example.com/a.mp3")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestFeedParserKeepsTextAroundNestedElements(t *testing.T) {
	store := data.NewMemoryStore()
	body := `<rss><channel>
  <description>A <i>weekly</i> show</description>
  <item>
    <description>Hello <b>bold</b> world</description>
    <title>Part <em>one</em></title>
    <enclosure url="https://example.com/a.mp3"/>
  </item>
</channel></rss>`

	result, err := parseFeed(t, store, body)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Errors.Len())

	podcast := requirePodcast(t, store, exampleFeedURL)
	assert.Equal(t, "A weekly show", podcast.Description)

	episode, err := store.SelectEpisodeByURL(context.Background(), "https://example.com/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Hello bold world", episode.Description)
	assert.Equal(t, "Part one", episode.Title)
}
