package jobdata

import "encoding/json"

// EncodeOpts serializes the option map as JSON, the wire format spec.md §6
// requires for the "opts" hash field. A nil map encodes as "{}" so that it
// round-trips as "equivalent to absent" per spec.md §6.
func EncodeOpts(opts map[string]string) string {
	if len(opts) == 0 {
		return "{}"
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeOpts parses the "opts" hash field. A literal "null" or the empty
// object both decode to an empty, non-nil map.
func DecodeOpts(raw string) (map[string]string, error) {
	opts := make(map[string]string)
	if raw == "" || raw == "null" {
		return opts, nil
	}
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, err
	}
	return opts, nil
}
