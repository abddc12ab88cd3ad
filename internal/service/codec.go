package service

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec serializes plain Go structs with encoding/json. It replaces
// connect's protobuf JSON codec, so clients speak application/json.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Codec returns the option that installs the JSON codec on handlers and
// clients.
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
