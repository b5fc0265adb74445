package grpcenv

import (
	"fmt"
	"math"
	"reflect"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/types/descriptorpb"
)

// toMessage builds a request message from a field-name keyed map. Keys may
// be the proto field name or its JSON name.
func toMessage(m map[string]any, md *desc.MessageDescriptor) (*dynamic.Message, error) {
	msg := dynamic.NewMessage(md)
	for name, v := range m {
		field := md.FindFieldByName(name)
		if field == nil {
			field = md.FindFieldByJSONName(name)
		}
		if field == nil {
			return nil, fmt.Errorf("%s has no field %q", md.GetFullyQualifiedName(), name)
		}
		pv, err := toField(v, field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if err := msg.TrySetField(field, pv); err != nil {
			return nil, fmt.Errorf("setting field %s: %w", name, err)
		}
	}
	return msg, nil
}

func toField(v any, field *desc.FieldDescriptor) (any, error) {
	switch {
	case field.IsMap():
		return toMap(v, field)
	case field.IsRepeated():
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected a list, got %T", v)
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := toScalar(rv.Index(i).Interface(), field)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = e
		}
		return out, nil
	}
	return toScalar(v, field)
}

func toMap(v any, field *desc.FieldDescriptor) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("expected a map, got %T", v)
	}
	out := make(map[any]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := toScalar(iter.Key().Interface(), field.GetMapKeyType())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		e, err := toScalar(iter.Value().Interface(), field.GetMapValueType())
		if err != nil {
			return nil, fmt.Errorf("map value %v: %w", k, err)
		}
		out[k] = e
	}
	return out, nil
}

func toScalar(v any, field *desc.FieldDescriptor) (any, error) {
	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		if n, ok := asInt(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		if n, ok := asInt(v); ok {
			return n, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		if n, ok := asInt(v); ok && n >= 0 && n <= math.MaxUint32 {
			return uint32(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		if u, ok := v.(uint64); ok {
			return u, nil
		}
		if n, ok := asInt(v); ok && n >= 0 {
			return uint64(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		if f, ok := asFloat(v); ok {
			return float32(f), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		if f, ok := asFloat(v); ok {
			return f, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		if m, ok := asStringMap(v); ok {
			return toMessage(m, field.GetMessageType())
		}
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if s, ok := v.(string); ok {
			if ev := field.GetEnumType().FindValueByName(s); ev != nil {
				return ev.GetNumber(), nil
			}
			return nil, fmt.Errorf("%s has no value %q", field.GetEnumType().GetName(), s)
		}
		if n, ok := asInt(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to proto type %v", v, field.GetType())
}

// fromMessage converts a response message into a field-name keyed map.
// Unset fields are omitted.
func fromMessage(msg *dynamic.Message) (map[string]any, error) {
	out := make(map[string]any)
	for _, field := range msg.GetKnownFields() {
		if !msg.HasField(field) {
			continue
		}
		v, err := fromField(msg.GetField(field), field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.GetName(), err)
		}
		out[field.GetName()] = v
	}
	return out, nil
}

func fromField(v any, field *desc.FieldDescriptor) (any, error) {
	switch {
	case field.IsMap():
		m, ok := v.(map[any]any)
		if !ok {
			return nil, fmt.Errorf("expected map, got %T", v)
		}
		out := make(map[string]any, len(m))
		for k, e := range m {
			ev, err := fromScalar(e, field.GetMapValueType())
			if err != nil {
				return nil, fmt.Errorf("map value conversion: %w", err)
			}
			out[fmt.Sprint(k)] = ev
		}
		return out, nil
	case field.IsRepeated():
		rv := reflect.ValueOf(v)
		out := make([]any, rv.Len())
		for i := range out {
			e, err := fromScalar(rv.Index(i).Interface(), field)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	}
	return fromScalar(v, field)
}

// fromScalar widens integers to int64 or uint64 and floats to float64.
// Enums become their value names.
func fromScalar(v any, field *desc.FieldDescriptor) (any, error) {
	switch x := v.(type) {
	case int32:
		if field.GetType() == descriptorpb.FieldDescriptorProto_TYPE_ENUM {
			if ev := field.GetEnumType().FindValueByNumber(x); ev != nil {
				return ev.GetName(), nil
			}
		}
		return int64(x), nil
	case int64, uint64, float64, bool, string, []byte:
		return x, nil
	case uint32:
		return uint64(x), nil
	case float32:
		return float64(x), nil
	case *dynamic.Message:
		return fromMessage(x)
	}
	return nil, fmt.Errorf("unsupported proto value %T for %v", v, field.GetType())
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return int64(u), u <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return int64(f), f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
