package backend

import (
	"fmt"
	"sort"
)

// ErrorCollector accumulates non-fatal errors raised during one ingestion
// run. It never changes control flow; callers drain it after the run.
type ErrorCollector struct {
	messages []string
}

// ErrorCount is one distinct message and how often it was recorded.
type ErrorCount struct {
	Message string
	Count   int
}

func (c *ErrorCollector) Add(format string, args ...interface{}) {
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
}

func (c *ErrorCollector) Len() int {
	return len(c.messages)
}

// Messages returns every recorded message in the order it was added.
func (c *ErrorCollector) Messages() []string {
	messages := make([]string, len(c.messages))
	copy(messages, c.messages)
	return messages
}

// Summary groups messages by text, most frequent first. Ties keep the
// order in which each message first appeared.
func (c *ErrorCollector) Summary() []ErrorCount {
	index := make(map[string]int)
	var counts []ErrorCount
	for _, m := range c.messages {
		if i, ok := index[m]; ok {
			counts[i].Count++
			continue
		}
		index[m] = len(counts)
		counts = append(counts, ErrorCount{Message: m, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	return counts
}
