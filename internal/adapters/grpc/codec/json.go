// Package codec は gRPC の content-subtype "json" で使う JSON コーデックを登録します。
package codec

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/encoding"
)

// Name は登録されるコーデック名です。
const Name = "json"

func init() {
	encoding.RegisterCodec(JSON{})
}

// JSON はメッセージを JSON で直列化する gRPC コーデックです。
type JSON struct{}

// Marshal は v を JSON にします。
func (JSON) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "codec: marshal")
	}
	return b, nil
}

// Unmarshal は data を v に読み込みます。
func (JSON) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "codec: unmarshal")
	}
	return nil
}

// Name はコーデック名を返します。
func (JSON) Name() string {
	return Name
}
