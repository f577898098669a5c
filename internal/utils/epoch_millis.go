package utils

import (
	"encoding/json"
	"time"
)

// EpochMillis wraps time.Time so that it (un)marshals as integer milliseconds
// since the Unix epoch, the format browsers produce with Date.now().
type EpochMillis time.Time

func NewEpochMillis(t time.Time) EpochMillis {
	return EpochMillis(t)
}

func (d EpochMillis) Time() time.Time {
	return time.Time(d)
}

func (d EpochMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).UnixMilli())
}

func (d *EpochMillis) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*d = EpochMillis(time.UnixMilli(ms))
	return nil
}
