package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sample is one normalized incoming metric measurement.
// Params: measurement timestamp, metric key, value, language, and context.
// Returns: validated evaluation input for the engine.
type Sample struct {
	DT       int64         `json:"dt"`
	Metric   string        `json:"metric"`
	Value    float64       `json:"value"`
	Language string        `json:"language"`
	Context  *AlertContext `json:"context,omitempty"`
}

// SampleTime converts milliseconds unix timestamp into UTC time.
// Params: sample timestamp in unix milliseconds.
// Returns: converted UTC time.
func (s Sample) SampleTime() time.Time {
	return time.UnixMilli(s.DT).UTC()
}

// DecodeSample decodes and validates one sample payload.
// Params: JSON document bytes.
// Returns: validated sample or decode/validation error.
func DecodeSample(raw []byte) (Sample, error) {
	var sample Sample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// DecodeSamplesReader decodes and validates one batch of samples from stream.
// Params: reader with one JSON array of samples.
// Returns: validated sample slice or decode/validation error.
func DecodeSamplesReader(reader *json.Decoder) ([]Sample, error) {
	var samples []Sample
	if err := reader.Decode(&samples); err != nil {
		return nil, fmt.Errorf("decode sample batch: %w", err)
	}
	if len(samples) == 0 {
		return nil, errors.New("sample batch must contain at least one sample")
	}
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			return nil, fmt.Errorf("sample[%d]: %w", i, err)
		}
	}
	return samples, nil
}

// Validate validates one sample against the ingest contract.
// Params: sample fields parsed from transport.
// Returns: validation error when schema is violated.
func (s Sample) Validate() error {
	if s.DT <= 0 {
		return errors.New("dt must be >0")
	}
	if strings.TrimSpace(s.Metric) == "" {
		return errors.New("metric is required")
	}
	if strings.TrimSpace(s.Language) == "" {
		return errors.New("language is required")
	}
	return nil
}
