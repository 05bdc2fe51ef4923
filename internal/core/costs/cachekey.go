package costs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CacheKey derives a stable key for the Cost Explorer request a query
// produces. The output format is not part of the key since it does not
// change the fetched data.
func CacheKey(q Query, granularity, metric string) string {
	key := struct {
		Start       string      `json:"start"`
		End         string      `json:"end"`
		Granularity string      `json:"granularity"`
		Metric      string      `json:"metric"`
		Filter      *Expression `json:"filter,omitempty"`
	}{
		Start:       q.StartDate(),
		End:         q.EndDate(),
		Granularity: granularity,
		Metric:      metric,
		Filter:      q.Filter,
	}

	b, _ := json.Marshal(key)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
