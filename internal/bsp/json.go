package bsp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func marshalAny(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func unmarshalNumberOrString(data []byte) (any, error) {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return asString, nil
	}
	var asNumber json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&asNumber); err == nil {
		if i, err := asNumber.Int64(); err == nil {
			return i, nil
		}
		f, err := asNumber.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("request id is neither a string nor a number: %s", data)
}
