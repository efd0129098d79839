package dgctx

import (
	"strconv"
	"strings"
	"time"
)

// TrimChannelString strips the mention wrapping from a channel string.
func TrimChannelString(chStr string) string {
	chStr = strings.TrimPrefix(chStr, "<#")
	chStr = strings.TrimSuffix(chStr, ">")
	return chStr
}

// ParseSnowflake extracts the creation time from a discord snowflake id.
func ParseSnowflake(id string) (time.Time, error) {
	n, err := strconv.ParseInt(id, 0, 63)
	if err != nil {
		return time.Now(), err
	}
	return time.Unix(((n>>22)+1420070400000)/1000, 0), nil
}

// IDToTimestamp is ParseSnowflake for callers that can live with the zero
// fallback on bad input.
func IDToTimestamp(id string) time.Time {
	ts, err := ParseSnowflake(id)
	if err != nil {
		return time.Time{}
	}
	return ts
}
