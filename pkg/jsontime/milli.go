// Package jsontime provides time types that serialize as plain numbers.
package jsontime

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Milli is a time.Time that serializes to/from Unix milliseconds in both
// JSON and msgpack. Sub-millisecond precision is dropped on encode.
type Milli time.Time

var (
	_ msgpack.CustomEncoder = Milli{}
	_ msgpack.CustomDecoder = (*Milli)(nil)
)

// NowEpochMilli returns the current time truncated to milliseconds, so a
// value survives an encode/decode round trip unchanged.
func NowEpochMilli() Milli {
	return FromUnixMilli(time.Now().UnixMilli())
}

// FromUnixMilli converts Unix milliseconds to Milli.
func FromUnixMilli(ms int64) Milli {
	return Milli(time.UnixMilli(ms))
}

// Time returns the underlying time.Time value.
func (ep Milli) Time() time.Time {
	return time.Time(ep)
}

// UnixMilli returns ep as Unix milliseconds.
func (ep Milli) UnixMilli() int64 {
	return time.Time(ep).UnixMilli()
}

// Before reports whether ep is before t.
func (ep Milli) Before(t Milli) bool {
	return time.Time(ep).Before(time.Time(t))
}

// After reports whether ep is after t.
func (ep Milli) After(t Milli) bool {
	return time.Time(ep).After(time.Time(t))
}

// Equal reports whether ep and t represent the same time instant.
func (ep Milli) Equal(t Milli) bool {
	return time.Time(ep).Equal(time.Time(t))
}

// Compare returns -1, 0 or +1 like time.Time.Compare.
func (ep Milli) Compare(t Milli) int {
	return time.Time(ep).Compare(time.Time(t))
}

// String formats ep in the local zone as "2006-01-02 15:04".
func (ep Milli) String() string {
	return time.Time(ep).Local().Format("2006-01-02 15:04")
}

// IsZero reports whether ep represents the zero time instant.
func (ep Milli) IsZero() bool {
	return time.Time(ep).IsZero()
}

// UnmarshalJSON implements json.Unmarshaler.
func (ep *Milli) UnmarshalJSON(b []byte) error {
	var t int64
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*ep = FromUnixMilli(t)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ep Milli) MarshalJSON() ([]byte, error) {
	return json.Marshal(ep.UnixMilli())
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (ep Milli) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeInt(ep.UnixMilli())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (ep *Milli) DecodeMsgpack(dec *msgpack.Decoder) error {
	t, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	*ep = FromUnixMilli(t)
	return nil
}
