package deck

import "fmt"

// Category groups cards so deck generation can balance topics.
type Category string

const (
	CategoryTechnology Category = "TECH"
	CategoryScience    Category = "SCIENCE"
	CategoryHistory    Category = "HISTORY"
	CategoryCulture    Category = "CULTURE"
	CategorySports     Category = "SPORTS"
	CategoryPolitics   Category = "POLITICS"
	CategoryArt        Category = "ART"
	CategoryDiscovery  Category = "DISCOVERY"
)

// Categories lists every known category in a fixed order.
var Categories = []Category{
	CategoryTechnology,
	CategoryScience,
	CategoryHistory,
	CategoryCulture,
	CategorySports,
	CategoryPolitics,
	CategoryArt,
	CategoryDiscovery,
}

func (c Category) Color() string {
	switch c {
	case CategoryTechnology:
		return "#007AFF"
	case CategoryScience:
		return "#34C759"
	case CategoryHistory:
		return "#FF9500"
	case CategoryCulture:
		return "#AF52DE"
	case CategorySports:
		return "#FF3B30"
	case CategoryPolitics:
		return "#5856D6"
	case CategoryArt:
		return "#FF2D55"
	case CategoryDiscovery:
		return "#00C7BE"
	default:
		return "#8E8E93"
	}
}

func (c Category) DisplayName() string {
	switch c {
	case CategoryTechnology:
		return "Technology"
	case CategoryScience:
		return "Science"
	case CategoryHistory:
		return "History"
	case CategoryCulture:
		return "Culture"
	case CategorySports:
		return "Sports"
	case CategoryPolitics:
		return "Politics"
	case CategoryArt:
		return "Art"
	case CategoryDiscovery:
		return "Discovery"
	default:
		return string(c)
	}
}

// Card is one historical event. Cards are immutable values; equality is by ID.
// Year may be negative (BCE). Month and Day are optional; zero means unknown
// and sorts before any known value within the same year.
type Card struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Year        int      `json:"year"`
	Month       int      `json:"month,omitempty"`
	Day         int      `json:"day,omitempty"`
	Category    Category `json:"category"`
	ImageURL    string   `json:"imageURL,omitempty"`
	Hint        string   `json:"hint,omitempty"`
}

// Before reports whether c happened strictly before other. Cards with an
// identical (year, month, day) key are not ordered in either direction.
func (c Card) Before(other Card) bool {
	if c.Year != other.Year {
		return c.Year < other.Year
	}
	if c.Month != other.Month {
		return c.Month < other.Month
	}
	return c.Day < other.Day
}

func (c Card) After(other Card) bool {
	return other.Before(c)
}

// Between reports whether c falls strictly between before and after.
func (c Card) Between(before, after Card) bool {
	return before.Before(c) && c.Before(after)
}

// FormattedDate renders the most precise known date: "d/m/y", "m/y" or "y".
func (c Card) FormattedDate() string {
	if c.Month > 0 && c.Day > 0 {
		return fmt.Sprintf("%d/%d/%d", c.Day, c.Month, c.Year)
	}
	if c.Month > 0 {
		return fmt.Sprintf("%d/%d", c.Month, c.Year)
	}
	return fmt.Sprintf("%d", c.Year)
}
