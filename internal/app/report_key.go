package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"placement-quiz-service/internal/domain"
)

// ReportKey fingerprints a report so identical results share one rendered narrative.
func ReportKey(data domain.ReportData) string {
	// encoding/json sorts map keys, so the topic breakdown hashes deterministically.
	raw, _ := json.Marshal(data)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
