package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/shibest/mycelius/internal/models"
)

// KeyPrefix namespaces similarity entries inside a shared store.
const KeyPrefix = "similarity_cache_"

// CanonicalKey returns the cache key for profile. Profiles that differ only in list order share a key.
func CanonicalKey(profile models.Profile) string {
	data, _ := json.Marshal(profile.Canonical())
	return KeyPrefix + digest(data)
}

// CandidateKey extends [CanonicalKey] with the sorted candidate usernames, so a different batch
// against the same profile is scored afresh.
func CandidateKey(profile models.Profile, candidates []models.CandidateProfile) string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Username)
	}
	slices.Sort(names)

	data, _ := json.Marshal(struct {
		Profile    models.Profile `json:"profile"`
		Candidates []string       `json:"candidates"`
	}{profile.Canonical(), names})
	return KeyPrefix + digest(data)
}

// IsCacheKey reports whether key belongs to the similarity namespace.
func IsCacheKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefix)
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
