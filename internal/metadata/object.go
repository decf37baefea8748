package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// object is a decoded JSON object that remembers member order and keeps every
// member verbatim, including the ones no typed field maps to.
type object struct {
	keys []string
	vals map[string]json.RawMessage
}

func (o *object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	o.keys = nil
	o.vals = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("member %q: %w", key, err)
		}
		if _, dup := o.vals[key]; !dup {
			o.keys = append(o.keys, key)
		}
		o.vals[key] = raw
	}
	_, err = dec.Token()
	return err
}

func (o *object) has(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// decode unmarshals member key into v. It reports whether the member was
// present and decodable; a null member counts as absent.
func (o *object) decode(key string, v any) bool {
	raw, ok := o.vals[key]
	if !ok || isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// put stores v under key. An existing member that already holds an equal
// value keeps its original bytes; new members are appended in call order.
func (o *object) put(key string, v any) error {
	enc, err := marshalNoEscape(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if o.vals == nil {
		o.vals = make(map[string]json.RawMessage)
	}
	if old, ok := o.vals[key]; ok {
		if sameJSON(old, enc) {
			return nil
		}
	} else {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = enc
	return nil
}

func (o *object) remove(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(o.vals[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *object) clone() object {
	c := object{
		keys: append([]string(nil), o.keys...),
		vals: make(map[string]json.RawMessage, len(o.vals)),
	}
	for k, v := range o.vals {
		c.vals[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

// marshalNoEscape encodes v without HTML escaping so text such as "<->" in
// descriptions survives a rewrite unchanged.
func marshalNoEscape(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func sameJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
