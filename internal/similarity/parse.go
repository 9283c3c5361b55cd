package similarity

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/shibest/mycelius/internal/models"
)

// DefaultScore is assigned to any candidate the scorer did not rate legibly.
const DefaultScore = 50

const maxScore = 100

// scoreLine matches "7", "3. 82" and "3) 82".
var scoreLine = regexp.MustCompile(`^\s*(?:(\d+)\s*[.)]\s*)?(\d+)\s*$`)

// ParseScores maps a scorer reply onto candidates.
//
// Indexed lines ("2. 75") are 1-based candidate numbers. Bare lines ("75") take the position of the
// line among the non-blank lines of the reply. Scores above 100, unknown indices and unreadable
// lines are ignored, leaving those candidates at [DefaultScore].
func ParseScores(reply string, candidates []models.CandidateProfile) map[string]int {
	scores := make(map[string]int, len(candidates))
	for _, c := range candidates {
		scores[c.Username] = DefaultScore
	}

	position := 0
	sc := bufio.NewScanner(strings.NewReader(reply))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		position++

		m := scoreLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		index := position - 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			index = n - 1
		}
		if index < 0 || index >= len(candidates) {
			continue
		}

		score, err := strconv.Atoi(m[2])
		if err != nil || score > maxScore {
			continue
		}
		scores[candidates[index].Username] = score
	}

	return scores
}
