package gitmetrics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// integrityDigest fingerprints the analysis for consistency checks. It
// covers the record counts, the repository id, and the analysis date
// truncated to the day, not the payload contents. Two analyses on the same
// calendar day with the same counts share a digest even if the underlying
// records differ; this is a coarse tamper check, not a content hash.
func integrityDigest(commitCount, prCount, issueCount int, repoID string, analyzedAt time.Time) string {
	input := fmt.Sprintf("%d|%d|%d|%s|%s",
		commitCount, prCount, issueCount, repoID,
		analyzedAt.UTC().Format("2006-01-02"))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
