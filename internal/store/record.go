package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
)

// recordFields is a record exploded into its top-level JSON fields.
type recordFields map[string]json.RawMessage

func explode(v any) (recordFields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: marshal record: %w", err)
	}
	var fields recordFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("store: record is not a JSON object: %w", err)
	}
	return fields, nil
}

// splitRecord divides a record into its primary key, secondary index column
// values (in schema order) and the encrypted payload holding every remaining
// field. A record with no non-indexed fields gets a nil payload.
func splitRecord(sch Schema, ciph cipher.Cipher, v any) (key int64, idxVals []any, payload []byte, err error) {
	fields, err := explode(v)
	if err != nil {
		return 0, nil, nil, err
	}

	if raw, ok := fields[sch.Key]; ok {
		if err := json.Unmarshal(raw, &key); err != nil {
			return 0, nil, nil, fmt.Errorf("store: %s key: %w", sch.Name, err)
		}
		delete(fields, sch.Key)
	}

	for _, idx := range sch.Indexes {
		val, err := columnValue(idx, fields[idx.Name])
		if err != nil {
			return 0, nil, nil, fmt.Errorf("store: %s.%s: %w", sch.Name, idx.Name, err)
		}
		idxVals = append(idxVals, val)
		delete(fields, idx.Name)
	}

	if len(fields) > 0 {
		payload, err = ciph.Encrypt(fields)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("store: seal %s payload: %w", sch.Name, err)
		}
	}
	return key, idxVals, payload, nil
}

// mergeRecord rebuilds a record of type T from its plaintext columns and
// payload blob. A payload that fails to decrypt is dropped: the caller gets
// a record carrying only the indexed fields.
func mergeRecord[T any](sch Schema, ciph cipher.Cipher, key int64, idxVals []any, payload []byte) (T, error) {
	var out T

	fields := recordFields{}
	if len(payload) > 0 {
		if raw, ok := ciph.Decrypt(payload); ok {
			if err := json.Unmarshal(raw, &fields); err != nil {
				fields = recordFields{}
			}
		}
	}

	keyRaw, err := json.Marshal(key)
	if err != nil {
		return out, fmt.Errorf("store: %s key: %w", sch.Name, err)
	}
	fields[sch.Key] = keyRaw

	for i, idx := range sch.Indexes {
		raw, err := rawValue(idx, idxVals[i])
		if err != nil {
			return out, fmt.Errorf("store: %s.%s: %w", sch.Name, idx.Name, err)
		}
		if raw == nil {
			delete(fields, idx.Name)
			continue
		}
		fields[idx.Name] = raw
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("store: assemble %s record: %w", sch.Name, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("store: decode %s record: %w", sch.Name, err)
	}
	return out, nil
}

// columnValue converts a field's raw JSON value into the SQLite column value
// for its declared kind. Absent and null both map to a NULL column.
func columnValue(idx Index, raw json.RawMessage) (any, error) {
	if raw == nil || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil, nil
	}
	switch idx.Kind {
	case KindInt:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindText:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown index kind %d", idx.Kind)
}

// rawValue converts a scanned SQLite column value back into raw JSON.
// NULL yields nil, meaning the field is absent from the record.
func rawValue(idx Index, val any) (json.RawMessage, error) {
	if val == nil {
		return nil, nil
	}
	switch idx.Kind {
	case KindBool:
		switch v := val.(type) {
		case bool:
			return json.Marshal(v)
		case int64:
			return json.Marshal(v != 0)
		}
	case KindText:
		switch v := val.(type) {
		case string:
			return json.Marshal(v)
		case []byte:
			return json.Marshal(string(v))
		}
	case KindInt:
		if v, ok := val.(int64); ok {
			return json.Marshal(v)
		}
	}
	return nil, fmt.Errorf("unexpected column value %T", val)
}
