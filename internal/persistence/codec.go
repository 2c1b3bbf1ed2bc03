package persistence

import (
	"encoding/json"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// The document model is the JSON wire model the SDKs speak, so
// snapshots are stored as JSON rather than a Go-specific encoding.

// EncodeGraphs serializes a workflow's graphs.
func EncodeGraphs(graphs []*api.Graph) ([]byte, error) {
	return json.Marshal(graphs)
}

// DecodeGraphs deserializes a stored graph blob.
func DecodeGraphs(data []byte) ([]*api.Graph, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var graphs []*api.Graph
	if err := json.Unmarshal(data, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}
