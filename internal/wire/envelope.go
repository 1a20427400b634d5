// Package wire implements the binary contract of the CDN package
// endpoints: a signed envelope wrapping each payload, and the
// trace-warning package format carried inside it. Both are protobuf
// messages; encoding and decoding go through the protobuf wire package
// so that unknown fields from newer servers are skipped, not rejected.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// SignedEnvelope is the outer message of every package download:
//
//	message SignedEnvelope {
//	  bytes bin       = 1;
//	  bytes signature = 2;
//	}
//
// The signature is computed over the raw bin bytes.
type SignedEnvelope struct {
	Bin       []byte
	Signature []byte
}

const (
	envelopeBinField       = 1
	envelopeSignatureField = 2
)

// MarshalEnvelope encodes e into protobuf wire format.
func MarshalEnvelope(e *SignedEnvelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, envelopeBinField, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Bin)
	b = protowire.AppendTag(b, envelopeSignatureField, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Signature)
	return b
}

// UnmarshalEnvelope decodes a signed envelope from protobuf wire format.
func UnmarshalEnvelope(data []byte) (*SignedEnvelope, error) {
	e := &SignedEnvelope{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("envelope: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == envelopeBinField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("envelope: invalid bin field: %w", protowire.ParseError(n))
			}
			e.Bin = append([]byte(nil), v...)
			data = data[n:]
		case num == envelopeSignatureField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("envelope: invalid signature field: %w", protowire.ParseError(n))
			}
			e.Signature = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("envelope: invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if len(e.Bin) == 0 {
		return nil, fmt.Errorf("envelope: missing bin")
	}
	return e, nil
}
