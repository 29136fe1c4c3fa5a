package store

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopsight/backend/internal/domain/platform"
)

// Wire values arrive untyped. Each helper overwrites the target only when the
// record actually carried the field and it parses; absent or malformed values
// leave the previous state alone, which is what field-wise last-write-wins
// merging requires.

func mergeString(rec *platform.Record, name string, dst *string) {
	if !rec.HasField(name) {
		return
	}
	if v, ok := rec.Fields[name].(string); ok {
		*dst = v
	}
}

func mergeDecimal(rec *platform.Record, name string, dst *decimal.Decimal) {
	if !rec.HasField(name) {
		return
	}
	switch v := rec.Fields[name].(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	case float64:
		*dst = decimal.NewFromFloat(v)
	}
}

func mergeInt(rec *platform.Record, name string, dst *int) {
	if !rec.HasField(name) {
		return
	}
	if v, ok := rec.Fields[name].(float64); ok {
		*dst = int(v)
	}
}

func mergeTime(rec *platform.Record, name string, dst **time.Time) {
	if !rec.HasField(name) {
		return
	}
	if v, ok := rec.Fields[name].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			*dst = &ts
		}
	}
}
