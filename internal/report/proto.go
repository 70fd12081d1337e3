package report

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the LoadTestRunReport schema.
const (
	fieldRunTimestamp  protowire.Number = 1
	fieldConfig        protowire.Number = 2
	fieldWorkerStats   protowire.Number = 3
	fieldCDF           protowire.Number = 4
	fieldCDFSuccess    protowire.Number = 5
	fieldCDFNonSuccess protowire.Number = 6

	fieldConfigURL      protowire.Number = 1
	fieldConfigMethod   protowire.Number = 2
	fieldConfigRPS      protowire.Number = 3
	fieldConfigDuration protowire.Number = 4
	fieldConfigHeaders  protowire.Number = 5

	fieldHeaderName  protowire.Number = 1
	fieldHeaderValue protowire.Number = 2

	fieldPointPercentile protowire.Number = 1
	fieldPointLatency    protowire.Number = 2
)

var ErrMalformedReport = errors.New("malformed report")

// Marshal encodes r in protobuf wire format. Zero scalars are omitted.
func Marshal(r *Report) []byte {
	var b []byte
	b = appendVarint(b, fieldRunTimestamp, uint64(r.RunTimestampUnixNanos))
	if r.Config != nil {
		b = appendMessage(b, fieldConfig, marshalConfig(r.Config))
	}
	for i := range r.WorkerStats {
		b = appendMessage(b, fieldWorkerStats, marshalWorkerStats(&r.WorkerStats[i]))
	}
	for _, list := range []struct {
		num    protowire.Number
		points []CDFPoint
	}{
		{fieldCDF, r.CDF},
		{fieldCDFSuccess, r.CDFSuccess},
		{fieldCDFNonSuccess, r.CDFNonSuccess},
	} {
		for _, p := range list.points {
			b = appendMessage(b, list.num, marshalPoint(p))
		}
	}
	return b
}

func marshalConfig(c *LoadTestConfig) []byte {
	var b []byte
	b = appendString(b, fieldConfigURL, c.URL)
	b = appendString(b, fieldConfigMethod, c.Method)
	b = appendVarint(b, fieldConfigRPS, uint64(c.RequestsPerSecond))
	b = appendVarint(b, fieldConfigDuration, uint64(c.DurationSecs))
	for _, h := range c.Headers {
		var hb []byte
		hb = appendString(hb, fieldHeaderName, h.Name)
		hb = appendString(hb, fieldHeaderValue, h.Value)
		b = appendMessage(b, fieldConfigHeaders, hb)
	}
	return b
}

func workerStatsFields(w *WorkerStats) []*uint64 {
	return []*uint64{
		&w.ElapsedNanos,
		&w.RequestSent,
		&w.InFlight,
		&w.InformationalResponse,
		&w.SuccessfulResponse,
		&w.RedirectionMessage,
		&w.ClientErrorResponse,
		&w.ServerErrorResponse,
		&w.OtherErrorResponse,
		&w.Timeouts,
	}
}

// Fields 1 (timestamp) and 2 (worker id) come first, the uint64 counters
// follow in workerStatsFields order from field 3.
const firstCounterField protowire.Number = 3

func marshalWorkerStats(w *WorkerStats) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(w.TimestampUnixNanos))
	b = appendVarint(b, 2, uint64(w.WorkerID))
	for i, v := range workerStatsFields(w) {
		b = appendVarint(b, firstCounterField+protowire.Number(i), *v)
	}
	return b
}

func marshalPoint(p CDFPoint) []byte {
	var b []byte
	if bits := math.Float64bits(p.Percentile); bits != 0 {
		b = protowire.AppendTag(b, fieldPointPercentile, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, bits)
	}
	return appendVarint(b, fieldPointLatency, uint64(p.LatencyNanos))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// Unmarshal decodes a report, ignoring fields it does not know.
func Unmarshal(b []byte) (*Report, error) {
	r := &Report{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldRunTimestamp && typ == protowire.VarintType:
			r.RunTimestampUnixNanos = int64(v)
		case num == fieldConfig && typ == protowire.BytesType:
			c, err := unmarshalConfig(raw)
			if err != nil {
				return err
			}
			r.Config = c
		case num == fieldWorkerStats && typ == protowire.BytesType:
			w, err := unmarshalWorkerStats(raw)
			if err != nil {
				return err
			}
			r.WorkerStats = append(r.WorkerStats, w)
		case (num == fieldCDF || num == fieldCDFSuccess || num == fieldCDFNonSuccess) && typ == protowire.BytesType:
			p, err := unmarshalPoint(raw)
			if err != nil {
				return err
			}
			switch num {
			case fieldCDF:
				r.CDF = append(r.CDF, p)
			case fieldCDFSuccess:
				r.CDFSuccess = append(r.CDFSuccess, p)
			default:
				r.CDFNonSuccess = append(r.CDFNonSuccess, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalConfig(b []byte) (*LoadTestConfig, error) {
	c := &LoadTestConfig{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldConfigURL && typ == protowire.BytesType:
			c.URL = string(raw)
		case num == fieldConfigMethod && typ == protowire.BytesType:
			c.Method = string(raw)
		case num == fieldConfigRPS && typ == protowire.VarintType:
			c.RequestsPerSecond = uint32(v)
		case num == fieldConfigDuration && typ == protowire.VarintType:
			c.DurationSecs = int64(v)
		case num == fieldConfigHeaders && typ == protowire.BytesType:
			var h Header
			err := walk(raw, func(num protowire.Number, typ protowire.Type, _ uint64, raw []byte) error {
				if typ != protowire.BytesType {
					return nil
				}
				switch num {
				case fieldHeaderName:
					h.Name = string(raw)
				case fieldHeaderValue:
					h.Value = string(raw)
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.Headers = append(c.Headers, h)
		}
		return nil
	})
	return c, err
}

func unmarshalWorkerStats(b []byte) (WorkerStats, error) {
	var w WorkerStats
	fields := workerStatsFields(&w)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
		if typ != protowire.VarintType {
			return nil
		}
		switch {
		case num == 1:
			w.TimestampUnixNanos = int64(v)
		case num == 2:
			w.WorkerID = uint32(v)
		case num >= firstCounterField && int(num-firstCounterField) < len(fields):
			*fields[num-firstCounterField] = v
		}
		return nil
	})
	return w, err
}

func unmarshalPoint(b []byte) (CDFPoint, error) {
	var p CDFPoint
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
		switch {
		case num == fieldPointPercentile && typ == protowire.Fixed64Type:
			p.Percentile = math.Float64frombits(v)
		case num == fieldPointLatency && typ == protowire.VarintType:
			p.LatencyNanos = int64(v)
		}
		return nil
	})
	return p, err
}

// walk calls fn for every field in b. Varint and fixed values are passed in
// v, length-delimited payloads in raw.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformedReport, protowire.ParseError(n))
		}
		b = b[n:]

		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v32 uint32
			v32, n = protowire.ConsumeFixed32(b)
			v = uint64(v32)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformedReport, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, v, raw); err != nil {
			return err
		}
	}
	return nil
}
