package game

import (
	"fmt"
	"math/rand"
)

var nameAdjectives = []string{
	"Swift", "Quick", "Bright", "Clever", "Wise", "Brave", "Valiant", "Noble",
}

var nameNouns = []string{
	"Historian", "Explorer", "Scholar", "Pioneer", "Seeker", "Adventurer", "Sage", "Discoverer",
}

var avatars = []string{
	"🎯", "🎲", "🎨", "🎭", "🎪", "🎬", "🎮", "🏆", "⭐", "💎", "🔮", "🎓", "🧩",
}

func randomDisplayName(rng *rand.Rand) string {
	adjective := nameAdjectives[rng.Intn(len(nameAdjectives))]
	noun := nameNouns[rng.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s%d", adjective, noun, 1+rng.Intn(99))
}

func randomAvatar(rng *rand.Rand) string {
	return avatars[rng.Intn(len(avatars))]
}
