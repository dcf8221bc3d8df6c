package game

import (
	"sort"

	"timeline-arena/internal/deck"
)

// ValidPlacement reports whether inserting card at index keeps the timeline
// chronological. An empty timeline accepts any card. Boundary checks are
// strict: a card dated identically to a neighbor is invalid on either side.
// The same function backs both the optimistic client check and the host's
// authoritative scoring.
func ValidPlacement(timeline []deck.Card, card deck.Card, index int) bool {
	if len(timeline) == 0 {
		return true
	}
	if index <= 0 {
		return card.Before(timeline[0])
	}
	if index >= len(timeline) {
		return card.After(timeline[len(timeline)-1])
	}
	return card.Between(timeline[index-1], timeline[index])
}

// CorrectPosition returns the canonical insertion point: the first index
// whose card the new card strictly precedes, or the timeline length when it
// follows everything. Recomputing over the same inputs always yields the
// same index, which is what makes round resolution safely retryable.
func CorrectPosition(timeline []deck.Card, card deck.Card) int {
	for i, existing := range timeline {
		if card.Before(existing) {
			return i
		}
	}
	return len(timeline)
}

// orderedUnique drops duplicate ids while keeping first-seen order.
func orderedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dedupeCards drops cards whose id was already seen.
func dedupeCards(cards []deck.Card) []deck.Card {
	seen := make(map[string]struct{}, len(cards))
	out := make([]deck.Card, 0, len(cards))
	for _, card := range cards {
		if _, ok := seen[card.ID]; ok {
			continue
		}
		seen[card.ID] = struct{}{}
		out = append(out, card)
	}
	return out
}

func timelineIDs(cards []deck.Card) []string {
	ids := make([]string, 0, len(cards))
	seen := make(map[string]struct{}, len(cards))
	for _, card := range cards {
		if _, ok := seen[card.ID]; ok {
			continue
		}
		seen[card.ID] = struct{}{}
		ids = append(ids, card.ID)
	}
	return ids
}

// mapTimeline resolves ids against the generated deck, skipping unknowns.
func mapTimeline(ids []string, cards []deck.Card) []deck.Card {
	byID := make(map[string]deck.Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	out := make([]deck.Card, 0, len(ids))
	for _, id := range orderedUnique(ids) {
		if card, ok := byID[id]; ok {
			out = append(out, card)
		}
	}
	return out
}

// buildTimeline reconstructs the shared timeline from a round's id snapshot.
// When any id cannot be resolved against the deck the whole snapshot is
// distrusted and the prefix fallback is used instead. The fallback is a
// recovery heuristic only; it must never be treated as authoritative.
func buildTimeline(ids []string, cards []deck.Card, fallbackIndex int) []deck.Card {
	if len(ids) > 0 {
		unique := orderedUnique(ids)
		mapped := mapTimeline(unique, cards)
		if len(mapped) == len(unique) {
			return mapped
		}
	}
	return fallbackTimeline(cards, fallbackIndex)
}

// fallbackTimeline approximates a timeline as the chronologically sorted
// prefix of the deck up to index.
func fallbackTimeline(cards []deck.Card, index int) []deck.Card {
	if len(cards) == 0 {
		return nil
	}
	end := index
	if end < 1 {
		end = 1
	}
	if end > len(cards) {
		end = len(cards)
	}
	prefix := dedupeCards(cards[:end])
	sort.SliceStable(prefix, func(i, j int) bool { return prefix[i].Before(prefix[j]) })
	return prefix
}

// insertCard places card at position, removing any stale copy first and
// clamping the position into range.
func insertCard(timeline []deck.Card, card deck.Card, position int) []deck.Card {
	filtered := make([]deck.Card, 0, len(timeline)+1)
	for _, existing := range timeline {
		if existing.ID != card.ID {
			filtered = append(filtered, existing)
		}
	}
	if position < 0 {
		position = 0
	}
	if position > len(filtered) {
		position = len(filtered)
	}
	out := make([]deck.Card, 0, len(filtered)+1)
	out = append(out, filtered[:position]...)
	out = append(out, card)
	out = append(out, filtered[position:]...)
	return dedupeCards(out)
}
