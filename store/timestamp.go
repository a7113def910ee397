package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Timestamp of a message. It decodes RFC 3339 strings and epoch milliseconds, and encodes
// back to the exact JSON it was decoded from.
type Timestamp struct {
	time.Time
	raw json.RawMessage
}

// NewTimestamp returns a timestamp encoded as an RFC 3339 string.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		if err := t.Time.UnmarshalJSON(data); err != nil {
			return errors.Wrap(err, "parsing timestamp")
		}
	} else {
		var number json.Number
		if err := json.Unmarshal(data, &number); err != nil {
			return errors.Wrap(err, "parsing timestamp")
		}
		millis, err := number.Int64()
		if err != nil {
			float, err := number.Float64()
			if err != nil {
				return errors.Wrapf(err, "parsing timestamp %s", number)
			}
			millis = int64(float)
		}
		t.Time = time.UnixMilli(millis).UTC()
	}
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return t.Time.MarshalJSON()
}
