package deck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Catalog holds the card pool backing deck generation. The pool is loaded
// from a bundled JSON file when available, falls back to the built-in set
// otherwise, and can be replaced at runtime by a remote override.
type Catalog struct {
	mu        sync.Mutex
	cards     []Card
	remoteURL string
	minFetch  time.Duration
	lastFetch time.Time
	client    *http.Client
}

// NewCatalog loads the card pool from path. A missing or unreadable file is
// not an error; the built-in cards are used instead.
func NewCatalog(path string) *Catalog {
	cards := loadBundledCards(path)
	if len(cards) == 0 {
		cards = defaultCards()
	}
	return &Catalog{
		cards:  cards,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewCatalogWithCards builds a catalog over a fixed pool. Used by tests and
// by callers that manage card data themselves.
func NewCatalogWithCards(cards []Card) *Catalog {
	pool := make([]Card, len(cards))
	copy(pool, cards)
	return &Catalog{
		cards:  pool,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func loadBundledCards(path string) []Card {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil
	}
	return cards
}

// SetRemote configures a remote catalog override. Refresh does nothing until
// a URL is set. minFetch throttles how often the remote is consulted.
func (c *Catalog) SetRemote(url string, minFetch time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteURL = url
	c.minFetch = minFetch
}

// Refresh fetches the remote card list and replaces the pool when the payload
// is a non-empty valid card array. Calls inside the minimum fetch interval
// are no-ops. Invalid or empty payloads leave the current pool in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	url := c.remoteURL
	if url == "" || time.Since(c.lastFetch) < c.minFetch {
		c.mu.Unlock()
		return nil
	}
	c.lastFetch = time.Now()
	client := c.client
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	var cards []Card
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return err
	}
	if len(cards) == 0 {
		return nil
	}
	c.mu.Lock()
	c.cards = cards
	c.mu.Unlock()
	return nil
}

// Cards returns a copy of the current pool.
func (c *Catalog) Cards() []Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// CardByID looks a card up in the current pool.
func (c *Catalog) CardByID(id string) (Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, card := range c.cards {
		if card.ID == id {
			return card, true
		}
	}
	return Card{}, false
}

// Generate builds the deterministic deck for a seed over the current pool.
func (c *Catalog) Generate(seed, count int) []Card {
	return Generate(seed, count, c.Cards())
}

// defaultCards is the built-in event set used when no bundled file exists.
func defaultCards() []Card {
	cards := []Card{
		{Title: "Invention of the printing press", Description: "Johannes Gutenberg introduces movable type printing", Year: 1440, Category: CategoryTechnology},
		{Title: "Columbus reaches the Americas", Description: "First Atlantic crossing to the New World", Year: 1492, Month: 10, Day: 12, Category: CategoryDiscovery},
		{Title: "Storming of the Bastille", Description: "Start of the French Revolution", Year: 1789, Month: 7, Day: 14, Category: CategoryHistory},
		{Title: "First powered flight", Description: "The Wright brothers fly at Kitty Hawk", Year: 1903, Month: 12, Day: 17, Category: CategoryTechnology},
		{Title: "Special relativity published", Description: "Einstein publishes his theory of special relativity", Year: 1905, Category: CategoryScience},
		{Title: "World War I begins", Description: "Outbreak of the first global conflict", Year: 1914, Month: 7, Day: 28, Category: CategoryHistory},
		{Title: "October Revolution", Description: "Bolsheviks take power in Russia", Year: 1917, Month: 10, Category: CategoryPolitics},
		{Title: "Discovery of penicillin", Description: "Alexander Fleming discovers penicillin", Year: 1928, Month: 9, Category: CategoryScience},
		{Title: "World War II begins", Description: "Outbreak of the second global conflict", Year: 1939, Month: 9, Day: 1, Category: CategoryHistory},
		{Title: "ENIAC unveiled", Description: "The first general-purpose electronic computer", Year: 1946, Category: CategoryTechnology},
		{Title: "Structure of DNA", Description: "The double helix structure is described", Year: 1953, Category: CategoryScience},
		{Title: "Sputnik 1 launched", Description: "The first artificial satellite reaches orbit", Year: 1957, Month: 10, Day: 4, Category: CategoryTechnology},
		{Title: "First human in space", Description: "Yuri Gagarin orbits the Earth", Year: 1961, Month: 4, Day: 12, Category: CategoryDiscovery},
		{Title: "First Moon landing", Description: "Neil Armstrong walks on the Moon", Year: 1969, Month: 7, Day: 20, Category: CategoryDiscovery},
		{Title: "ARPANET goes live", Description: "The precursor of the Internet sends its first message", Year: 1969, Month: 10, Day: 29, Category: CategoryTechnology},
		{Title: "Fall of the Berlin Wall", Description: "End of the division of Berlin", Year: 1989, Month: 11, Day: 9, Category: CategoryHistory},
		{Title: "World Wide Web invented", Description: "Tim Berners-Lee publishes the first website", Year: 1991, Category: CategoryTechnology},
		{Title: "Great Pyramid completed", Description: "Construction of the pyramid of Khufu", Year: -2560, Category: CategoryHistory},
		{Title: "Founding of Rome", Description: "Romulus founds Rome according to legend", Year: -753, Month: 4, Day: 21, Category: CategoryHistory},
		{Title: "Fall of the Western Roman Empire", Description: "Deposition of the last western emperor", Year: 476, Category: CategoryHistory},
		{Title: "Coronation of Charlemagne", Description: "Charlemagne crowned emperor in Rome", Year: 800, Month: 12, Day: 25, Category: CategoryHistory},
		{Title: "Magna Carta sealed", Description: "The Great Charter is agreed at Runnymede", Year: 1215, Month: 6, Day: 15, Category: CategoryPolitics},
		{Title: "Italian Renaissance begins", Description: "Flowering of arts and letters in Italy", Year: 1400, Category: CategoryCulture},
		{Title: "Ninety-five Theses", Description: "Martin Luther starts the Reformation", Year: 1517, Month: 10, Day: 31, Category: CategoryHistory},
		{Title: "Age of Enlightenment", Description: "European philosophical movement takes hold", Year: 1700, Category: CategoryCulture},
		{Title: "American Declaration of Independence", Description: "The thirteen colonies declare independence", Year: 1776, Month: 7, Day: 4, Category: CategoryPolitics},
		{Title: "Battle of Waterloo", Description: "Final defeat of Napoleon", Year: 1815, Month: 6, Day: 18, Category: CategoryHistory},
		{Title: "Telephone patented", Description: "Alexander Graham Bell patents the telephone", Year: 1876, Category: CategoryTechnology},
		{Title: "First modern Olympic Games", Description: "The Olympics are revived in Athens", Year: 1896, Month: 4, Day: 6, Category: CategorySports},
		{Title: "First FIFA World Cup", Description: "Uruguay hosts and wins the first World Cup", Year: 1930, Month: 7, Category: CategorySports},
		{Title: "Mona Lisa painted", Description: "Leonardo da Vinci paints the Mona Lisa", Year: 1503, Category: CategoryArt},
		{Title: "Guernica exhibited", Description: "Picasso shows Guernica at the Paris exposition", Year: 1937, Month: 7, Category: CategoryArt},
		{Title: "Premiere of the cinematograph", Description: "The Lumiere brothers screen films publicly", Year: 1895, Category: CategoryCulture},
		{Title: "Radioactivity discovered", Description: "Henri Becquerel observes radioactivity", Year: 1896, Category: CategoryScience},
		{Title: "Tutankhamun's tomb found", Description: "Howard Carter opens the intact tomb", Year: 1922, Month: 11, Category: CategoryDiscovery},
		{Title: "Wall Street crash", Description: "Black Thursday opens the Great Depression", Year: 1929, Month: 10, Day: 24, Category: CategoryHistory},
	}
	for i := range cards {
		cards[i].ID = fmt.Sprintf("default_%d", i)
	}
	return cards
}
