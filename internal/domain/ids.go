package domain

import (
	"strconv"
	"strings"
	"time"
)

// TempIDPrefix marks ids a client made up for a member it has not saved yet.
const TempIDPrefix = "tmp-"

// IsTemporaryID reports whether id still needs a store-assigned replacement.
func IsTemporaryID(id string) bool {
	return id == "" || strings.HasPrefix(id, TempIDPrefix)
}

// LocalID is the timestamp id used where no store assigns one.
func LocalID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}
