package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Field is a single key of a JSON object with its raw, compacted value.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Fields is an ordered JSON object. It keeps keys the service does not
// understand so a stored definition comes back exactly as it was given.
type Fields []Field

func (f Fields) Get(key string) (json.RawMessage, bool) {
	for _, fd := range f {
		if fd.Key == key {
			return fd.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of key in place, or appends it.
func (f *Fields) Set(key string, value json.RawMessage) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

func (f *Fields) SetValue(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	f.Set(key, raw)
	return nil
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fd := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fd.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(fd.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(fd.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("expected JSON object")
	}

	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}

		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return fmt.Errorf("compact %s: %w", key, err)
		}
		out.Set(key, compact.Bytes())
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}
