// Package similarity scores candidate users against the local profile and caches the results.
//
// A batch is keyed by a hash of the canonical profile, so reordering a list never misses the cache.
// On a miss every candidate is scored in one prompt to a [Scorer] and the reply is parsed by
// [ParseScores]. Anything the parser cannot read scores the neutral [DefaultScore].
//
// Cached batches live in a [Cache]: [BoltCache] for a local file or [RedisCache] when a Redis URL is
// configured. Entries older than the TTL are deleted on read.
package similarity
