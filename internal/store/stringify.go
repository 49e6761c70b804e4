package store

import (
	"fmt"
	"strconv"
	"time"
)

// StringifyScan converts a database/sql scan target value to the raw
// string form the inference layer consumes. Backends must not assume a
// particular driver type for scanned values; this helper keeps the raw
// representation consistent across backends.
func StringifyScan(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}
