package observerproto

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrBadMessage = errors.New("bad observer message")

//go:embed subscribe.schema.json
var subscribeSchemaText string

var subscribeSchema = jsonschema.MustCompileString("subscribe.schema.json", subscribeSchemaText)

// ParseSubscribe validates raw against the SUBSCRIBE schema and decodes it.
func ParseSubscribe(raw []byte) (SubscribeMsg, error) {
	var sub SubscribeMsg
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return sub, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if err := subscribeSchema.Validate(doc); err != nil {
		return sub, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if sub.ProtocolVersion != Version {
		return sub, fmt.Errorf("%w: protocol_version %q", ErrBadMessage, sub.ProtocolVersion)
	}
	if sub.Compression == "" {
		sub.Compression = CompressionNone
	}
	return sub, nil
}

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	encOnce.Do(func() {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return enc
}

func decoder() *zstd.Decoder {
	decOnce.Do(func() {
		dec, _ = zstd.NewReader(nil)
	})
	return dec
}

// EncodeFrame renders f as JSON, compressed with zstd when compression asks for
// it. binary reports whether the result must go out as a binary WS message.
func EncodeFrame(f FrameMsg, compression string) (b []byte, binary bool, err error) {
	f.Type = TypeFrame
	f.ProtocolVersion = Version
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, false, err
	}
	if compression != CompressionZstd {
		return raw, false, nil
	}
	return encoder().EncodeAll(raw, nil), true, nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(b []byte, binary bool) (FrameMsg, error) {
	var f FrameMsg
	if binary {
		raw, err := decoder().DecodeAll(b, nil)
		if err != nil {
			return f, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		b = raw
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if f.Type != TypeFrame {
		return f, fmt.Errorf("%w: type %q", ErrBadMessage, f.Type)
	}
	return f, nil
}
