package chatsync

import (
	"sort"

	"github.com/mbeoliero/campuschat/sdk"
)

// after reports whether a sorts after b. Timestamps order messages; ids break
// ties between messages stored in the same millisecond.
func after(a, b *sdk.Message) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.Id > b.Id
}

func sortChronological(msgs []*sdk.Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return after(msgs[j], msgs[i]) })
}

// mergeNewer appends the messages of batch that are newer than the last
// known message. Applying the same batch twice is a no-op.
func mergeNewer(known, batch []*sdk.Message) ([]*sdk.Message, int) {
	fresh := make([]*sdk.Message, 0, len(batch))
	for _, m := range batch {
		if m == nil {
			continue
		}
		if len(known) == 0 || after(m, known[len(known)-1]) {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return known, 0
	}
	sortChronological(fresh)
	fresh = dedupe(fresh)
	return append(known, fresh...), len(fresh)
}

// prependOlder puts an older page in front of the known messages, skipping
// anything that overlaps what is already loaded.
func prependOlder(known, page []*sdk.Message) ([]*sdk.Message, int) {
	older := make([]*sdk.Message, 0, len(page))
	for _, m := range page {
		if m == nil {
			continue
		}
		if len(known) == 0 || after(known[0], m) {
			older = append(older, m)
		}
	}
	if len(older) == 0 {
		return known, 0
	}
	sortChronological(older)
	older = dedupe(older)
	merged := make([]*sdk.Message, 0, len(older)+len(known))
	merged = append(merged, older...)
	return append(merged, known...), len(older)
}

// dedupe drops repeated ids from a sorted slice
func dedupe(msgs []*sdk.Message) []*sdk.Message {
	out := msgs[:0]
	for i, m := range msgs {
		if i > 0 && m.Id == msgs[i-1].Id {
			continue
		}
		out = append(out, m)
	}
	return out
}
