package similarity

import (
	"fmt"
	"strings"

	"github.com/shibest/mycelius/internal/models"
)

// BuildPrompt renders one prompt that numbers every candidate and asks for one score per line.
func BuildPrompt(profile models.Profile, candidates []models.CandidateProfile) string {
	var sb strings.Builder

	sb.WriteString("Rate how compatible each candidate is with this user as a friend, from 0 to 100.\n\n")
	sb.WriteString("User:\n")
	fmt.Fprintf(&sb, "- Hobbies: %s\n", orNone(profile.Hobbies))
	fmt.Fprintf(&sb, "- Music genres: %s\n", joinOrNone(profile.MusicGenres))
	fmt.Fprintf(&sb, "- Favorite games: %s\n", joinOrNone(profile.FavoriteGames))
	fmt.Fprintf(&sb, "- Favorite shows: %s\n", joinOrNone(profile.FavoriteShows))

	sb.WriteString("\nCandidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s (personality: %s; interests: %s)\n",
			i+1, c.Username, orNone(c.Personality), joinOrNone(c.Interests))
	}

	fmt.Fprintf(&sb, "\nReply with exactly %d lines, one per candidate, formatted as \"<number>. <score>\". ", len(candidates))
	sb.WriteString("Do not add any other text.\n")
	return sb.String()
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "none"
	}
	return s
}

func joinOrNone(items []string) string {
	return orNone(strings.Join(items, ", "))
}
