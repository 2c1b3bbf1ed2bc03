package updatelog

import "encoding/json"

// encodePayload JSON-encodes a record payload for storage. The graph
// document model is a JSON wire model, so payloads round-trip as
// generic JSON values rather than concrete Go types.
func encodePayload(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// decodePayload decodes a stored payload into a generic JSON value.
func decodePayload(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
