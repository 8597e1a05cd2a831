package slack

import (
	"sort"
	"strconv"
)

// GroupThreads groups a flat message list into conversation threads.
// The thread key is a message's parent timestamp when it is a reply,
// its own timestamp otherwise. Within each group messages are sorted
// ascending by numeric timestamp; ties keep original arrival order, so
// the result is deterministic for a given input set and safe to re-run
// on its own output.
func GroupThreads(messages []Message) map[string][]Message {
	threads := make(map[string][]Message)
	for _, m := range messages {
		key := m.ThreadKey()
		threads[key] = append(threads[key], m)
	}

	for key, msgs := range threads {
		sort.SliceStable(msgs, func(i, j int) bool {
			return tsValue(msgs[i].Ts) < tsValue(msgs[j].Ts)
		})
		threads[key] = msgs
	}
	return threads
}

// SortedThreadKeys returns the thread keys ordered by their parent
// timestamp, oldest first. Gives batch archiving a stable walk order.
func SortedThreadKeys(threads map[string][]Message) []string {
	keys := make([]string, 0, len(threads))
	for key := range threads {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return tsValue(keys[i]) < tsValue(keys[j])
	})
	return keys
}

// tsValue parses a Slack fractional-second timestamp. Unparseable
// timestamps sort first rather than panicking on provider garbage.
func tsValue(ts string) float64 {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return v
}
