package firestore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
)

// value is a Firestore REST typed value as it arrives on the wire
type value struct {
	StringValue    *string         `json:"stringValue,omitempty"`
	IntegerValue   *json.Number    `json:"integerValue,omitempty"`
	DoubleValue    *float64        `json:"doubleValue,omitempty"`
	BooleanValue   *bool           `json:"booleanValue,omitempty"`
	TimestampValue *string         `json:"timestampValue,omitempty"`
	NullValue      json.RawMessage `json:"nullValue,omitempty"`
	ReferenceValue *string         `json:"referenceValue,omitempty"`
	MapValue       *mapValue       `json:"mapValue,omitempty"`
	ArrayValue     *arrayValue     `json:"arrayValue,omitempty"`
}

type mapValue struct {
	Fields map[string]value `json:"fields,omitempty"`
}

type arrayValue struct {
	Values []value `json:"values,omitempty"`
}

type document struct {
	Name       string           `json:"name"`
	Fields     map[string]value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

func decodeFields(fields map[string]value) store.Fields {
	out := make(store.Fields, len(fields))
	for k, v := range fields {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v value) any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntegerValue != nil:
		if n, err := strconv.ParseInt(v.IntegerValue.String(), 10, 64); err == nil {
			return n
		}
		return v.IntegerValue.String()
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.BooleanValue != nil:
		return *v.BooleanValue
	case v.TimestampValue != nil:
		if t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue); err == nil {
			return t
		}
		return *v.TimestampValue
	case v.ReferenceValue != nil:
		return *v.ReferenceValue
	case v.MapValue != nil:
		return decodeFields(v.MapValue.Fields)
	case v.ArrayValue != nil:
		out := make([]any, 0, len(v.ArrayValue.Values))
		for _, item := range v.ArrayValue.Values {
			out = append(out, decodeValue(item))
		}
		return out
	}
	return nil
}

func encodeFields(fields store.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) map[string]any {
	switch val := v.(type) {
	case nil:
		return map[string]any{"nullValue": nil}
	case string:
		return map[string]any{"stringValue": val}
	case bool:
		return map[string]any{"booleanValue": val}
	case int:
		return map[string]any{"integerValue": strconv.Itoa(val)}
	case int32:
		return map[string]any{"integerValue": strconv.FormatInt(int64(val), 10)}
	case int64:
		return map[string]any{"integerValue": strconv.FormatInt(val, 10)}
	case float32:
		return map[string]any{"doubleValue": float64(val)}
	case float64:
		return map[string]any{"doubleValue": val}
	case decimal.Decimal:
		return map[string]any{"doubleValue": val.InexactFloat64()}
	case time.Time:
		return map[string]any{"timestampValue": val.UTC().Format(time.RFC3339Nano)}
	case store.Fields:
		return map[string]any{"mapValue": map[string]any{"fields": encodeFields(val)}}
	case map[string]any:
		return map[string]any{"mapValue": map[string]any{"fields": encodeFields(val)}}
	case []any:
		values := make([]any, 0, len(val))
		for _, item := range val {
			values = append(values, encodeValue(item))
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	case []string:
		values := make([]any, 0, len(val))
		for _, item := range val {
			values = append(values, encodeValue(item))
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	}
	return map[string]any{"stringValue": fmt.Sprint(v)}
}
