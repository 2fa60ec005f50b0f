package tasks

import (
	"hash/fnv"
	"math/rand"
	"time"

	"feed-digest/app/feed"
)

// fetchOffset derives a feed's fetch time for one calendar day as an offset
// from midnight, uniformly distributed across 24 hours. The offset is a
// pure function of feed name and date, so every scheduler run computes the
// same slot for the same day while different feeds (and different days)
// land on different slots.
func fetchOffset(feedName string, day time.Time) time.Duration {
	h := fnv.New64a()
	h.Write([]byte(feedName))
	h.Write([]byte(day.Format("20060102")))

	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	return time.Duration(rng.Int63n(int64(24 * time.Hour)))
}

// isDigestDue reports whether a feed needs a digest: one has never been
// sent, or the feed's interval has fully elapsed since the last send.
func isDigestDue(source *feed.Source, lastDigestSentAt *time.Time, now time.Time) bool {
	if lastDigestSentAt == nil {
		return true
	}

	return now.Sub(*lastDigestSentAt) >= source.DigestInterval()
}
