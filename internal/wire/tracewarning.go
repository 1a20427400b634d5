package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

// Trace-warning package wire format:
//
//	message TraceWarningPackage {
//	  repeated TraceTimeIntervalWarning warnings = 1;
//	}
//
//	message TraceTimeIntervalWarning {
//	  bytes  location_id_hash        = 1;
//	  uint32 start_interval_number   = 2;
//	  uint32 period                  = 3;
//	  uint32 transmission_risk_level = 4;
//	}
const (
	packageWarningsField = 1

	warningLocationIDHashField   = 1
	warningStartIntervalField    = 2
	warningPeriodField           = 3
	warningTransmissionRiskField = 4
)

// MarshalTraceWarningPackage encodes p into protobuf wire format.
func MarshalTraceWarningPackage(p *models.TraceWarningPackage) []byte {
	var b []byte
	for i := range p.Warnings {
		b = protowire.AppendTag(b, packageWarningsField, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalWarning(&p.Warnings[i]))
	}
	return b
}

func marshalWarning(w *models.TraceTimeIntervalWarning) []byte {
	var b []byte
	b = protowire.AppendTag(b, warningLocationIDHashField, protowire.BytesType)
	b = protowire.AppendBytes(b, w.LocationIDHash)
	b = protowire.AppendTag(b, warningStartIntervalField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.StartIntervalNumber))
	b = protowire.AppendTag(b, warningPeriodField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.Period))
	b = protowire.AppendTag(b, warningTransmissionRiskField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.TransmissionRiskLevel))
	return b
}

// UnmarshalTraceWarningPackage decodes a trace-warning package payload.
func UnmarshalTraceWarningPackage(data []byte) (*models.TraceWarningPackage, error) {
	p := &models.TraceWarningPackage{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("trace warning package: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == packageWarningsField && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("trace warning package: invalid warning entry: %w", protowire.ParseError(n))
			}
			w, err := unmarshalWarning(v)
			if err != nil {
				return nil, err
			}
			p.Warnings = append(p.Warnings, *w)
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("trace warning package: invalid field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return p, nil
}

func unmarshalWarning(data []byte) (*models.TraceTimeIntervalWarning, error) {
	w := &models.TraceTimeIntervalWarning{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("trace warning: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == warningLocationIDHashField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("trace warning: invalid location hash: %w", protowire.ParseError(n))
			}
			w.LocationIDHash = append([]byte(nil), v...)
			data = data[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("trace warning: invalid varint field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case warningStartIntervalField:
				w.StartIntervalNumber = uint32(v)
			case warningPeriodField:
				w.Period = uint32(v)
			case warningTransmissionRiskField:
				w.TransmissionRiskLevel = uint32(v)
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("trace warning: invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return w, nil
}
