package data

import (
	"context"
	"sort"
	"sync"
)

type int32Seq struct {
	current int32
	mutex   sync.Mutex
}

func (s *int32Seq) next() int32 {
	s.mutex.Lock()
	s.current++
	n := s.current
	s.mutex.Unlock()
	return n
}

// MemoryStore is an in-process Store. It enforces the same unique natural
// keys as the SQL stores and hands out copies so callers never share state
// with the store.
type MemoryStore struct {
	mutex             sync.Mutex
	podcastsIDSeq     int32Seq
	podcastsByID      map[int32]*Podcast
	podcastsByFeedURL map[string]*Podcast
	episodesIDSeq     int32Seq
	episodesByID      map[int32]*Episode
	episodesByURL     map[string]*Episode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		podcastsByID:      make(map[int32]*Podcast),
		podcastsByFeedURL: make(map[string]*Podcast),
		episodesByID:      make(map[int32]*Episode),
		episodesByURL:     make(map[string]*Episode),
	}
}

func copyPodcast(src *Podcast) *Podcast {
	p := *src
	return &p
}

func copyEpisode(src *Episode) *Episode {
	e := *src
	return &e
}

func (s *MemoryStore) indexPodcast(p *Podcast) error {
	if _, ok := s.podcastsByFeedURL[p.NaturalKey()]; ok {
		return DuplicationError{Field: "feed_url"}
	}

	s.podcastsByID[p.ID] = p
	s.podcastsByFeedURL[p.NaturalKey()] = p
	return nil
}

func (s *MemoryStore) deindexPodcast(p *Podcast) {
	delete(s.podcastsByID, p.ID)
	delete(s.podcastsByFeedURL, p.NaturalKey())
}

func (s *MemoryStore) indexEpisode(e *Episode) error {
	if _, ok := s.episodesByURL[e.NaturalKey()]; ok {
		return DuplicationError{Field: "url"}
	}

	s.episodesByID[e.ID] = e
	s.episodesByURL[e.NaturalKey()] = e
	return nil
}

func (s *MemoryStore) deindexEpisode(e *Episode) {
	delete(s.episodesByID, e.ID)
	delete(s.episodesByURL, e.NaturalKey())
}

func (s *MemoryStore) SelectPodcastByFeedURL(ctx context.Context, feedURL string) (*Podcast, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	src, ok := s.podcastsByFeedURL[NormalizeKey(feedURL)]
	if !ok {
		return nil, ErrNotFound
	}

	return copyPodcast(src), nil
}

func (s *MemoryStore) SelectPodcasts(ctx context.Context) ([]Podcast, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	podcasts := make([]Podcast, 0, len(s.podcastsByID))
	for _, p := range s.podcastsByID {
		podcasts = append(podcasts, *p)
	}
	sort.Slice(podcasts, func(i, j int) bool { return podcasts[i].ID < podcasts[j].ID })

	return podcasts, nil
}

func (s *MemoryStore) InsertPodcast(ctx context.Context, src *Podcast) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p := copyPodcast(src)
	p.ID = s.podcastsIDSeq.next()

	err := s.indexPodcast(p)
	if err != nil {
		return err
	}

	src.ID = p.ID
	return nil
}

func (s *MemoryStore) UpdatePodcast(ctx context.Context, src *Podcast) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	orig, ok := s.podcastsByID[src.ID]
	if !ok {
		return ErrNotFound
	}

	s.deindexPodcast(orig)

	err := s.indexPodcast(copyPodcast(src))
	if err != nil {
		s.indexPodcast(orig) // this shouldn't be able to fail because it was already indexed
		return err
	}

	return nil
}

func (s *MemoryStore) SelectEpisodeByURL(ctx context.Context, url string) (*Episode, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	src, ok := s.episodesByURL[NormalizeKey(url)]
	if !ok {
		return nil, ErrNotFound
	}

	return copyEpisode(src), nil
}

func (s *MemoryStore) SelectEpisodesByPodcastID(ctx context.Context, podcastID int32) ([]Episode, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var episodes []Episode
	for _, e := range s.episodesByID {
		if e.PodcastID == podcastID {
			episodes = append(episodes, *e)
		}
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].ID < episodes[j].ID })

	return episodes, nil
}

func (s *MemoryStore) InsertEpisode(ctx context.Context, src *Episode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.podcastsByID[src.PodcastID]; !ok {
		return ErrNotFound
	}

	e := copyEpisode(src)
	e.ID = s.episodesIDSeq.next()

	err := s.indexEpisode(e)
	if err != nil {
		return err
	}

	src.ID = e.ID
	return nil
}

func (s *MemoryStore) UpdateEpisode(ctx context.Context, src *Episode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	orig, ok := s.episodesByID[src.ID]
	if !ok {
		return ErrNotFound
	}

	s.deindexEpisode(orig)

	err := s.indexEpisode(copyEpisode(src))
	if err != nil {
		s.indexEpisode(orig) // this shouldn't be able to fail because it was already indexed
		return err
	}

	return nil
}
