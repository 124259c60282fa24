package embedder

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is the gRPC content-subtype this package registers. The
// retrieved teacher repo's own gRPC adapters (internal/infra/grpc/ai_client.go,
// internal/interface/grpc/embedding_server.go) depend on a protoc-generated
// pb package that is not present anywhere in the source tree they came from,
// so there is no generated message/stub pair to link against here. Rather
// than hand-fabricate generated protobuf code, the Embedder Client talks to
// its sidecar over plain gRPC framing with a JSON payload codec — a real,
// supported grpc-go extension point (google.golang.org/grpc/encoding) — and
// keeps every other piece of the teacher's adapter (circuit breaker, retry,
// metrics, validation, error mapping) unchanged.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("embedder: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
