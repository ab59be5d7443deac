package repository

import (
	"fmt"
	"time"
)

// aggregateTime scans MAX/MIN over a date column. Drivers without a declared
// column type for aggregates hand back text instead of time.Time.
type aggregateTime struct {
	time.Time
}

var aggregateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *aggregateTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("scan aggregate time: unsupported type %T", src)
	}
}

func (t *aggregateTime) parse(value string) error {
	for _, layout := range aggregateTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("scan aggregate time: unrecognized value %q", value)
}
