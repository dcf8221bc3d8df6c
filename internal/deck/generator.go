package deck

// lcg is the shared deterministic generator behind deck shuffling. Every
// client seeds it with the game's deck seed and must draw the same sequence,
// so the recurrence is part of the game's wire contract and cannot change.
type lcg struct {
	state uint64
}

func newLCG(seed int) *lcg {
	if seed < 0 {
		seed = -seed
	}
	return &lcg{state: uint64(seed)}
}

func (r *lcg) next() uint64 {
	r.state = r.state*1664525 + 1013904223
	return r.state
}

// intn returns a draw in [0, n). n must be positive.
func (r *lcg) intn(n int) int {
	return int(r.next() % uint64(n))
}

// Generate builds the ordered deck for a seed. The same (seed, count,
// catalog) always yields the same card sequence: the catalog is shuffled with
// the seeded generator, split into per-category queues that keep shuffle
// order, and drained by repeatedly picking a random non-empty category. The
// category draft keeps decks topically balanced instead of a raw sample.
//
// An empty catalog yields an empty deck; count larger than the catalog
// returns every card.
func Generate(seed, count int, catalog []Card) []Card {
	if len(catalog) == 0 {
		return nil
	}
	rng := newLCG(seed)

	shuffled := make([]Card, len(catalog))
	copy(shuffled, catalog)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	limit := count
	if limit > len(shuffled) {
		limit = len(shuffled)
	}

	// Category queues in first-appearance order so iteration is stable.
	pools := make(map[Category][]Card)
	var order []Category
	for _, card := range shuffled {
		if _, ok := pools[card.Category]; !ok {
			order = append(order, card.Category)
		}
		pools[card.Category] = append(pools[card.Category], card)
	}

	deck := make([]Card, 0, limit)
	for len(deck) < limit {
		available := available(order, pools)
		if len(available) == 0 {
			break
		}
		category := available[rng.intn(len(available))]
		deck = append(deck, pools[category][0])
		pools[category] = pools[category][1:]
	}
	return deck
}

func available(order []Category, pools map[Category][]Card) []Category {
	out := make([]Category, 0, len(order))
	for _, category := range order {
		if len(pools[category]) > 0 {
			out = append(out, category)
		}
	}
	return out
}
