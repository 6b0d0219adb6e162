package xjson

import (
	stdjson "encoding/json"

	gjson "github.com/goccy/go-json"
)

// Marshal/Unmarshal wrappers keep a single import site for the JSON codec used
// by stores and variable snapshots.

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gjson.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}

// Convert re-shapes src into dst through its JSON form. It is how typed records
// are stored in and read back from the untyped variable map.
func Convert(src interface{}, dst interface{}) error {
	data, err := gjson.Marshal(src)
	if err != nil {
		return err
	}
	return gjson.Unmarshal(data, dst)
}

// CloneMap deep-copies a JSON-compatible map.
func CloneMap(src map[string]interface{}) (map[string]interface{}, error) {
	if src == nil {
		return make(map[string]interface{}), nil
	}
	var dst map[string]interface{}
	if err := Convert(src, &dst); err != nil {
		return nil, err
	}
	if dst == nil {
		dst = make(map[string]interface{})
	}
	return dst, nil
}

// RawMessage is kept compatible with encoding/json's RawMessage type.
type RawMessage = stdjson.RawMessage
