package settings

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// GetPath returns the field at a gjson path inside a JSON-valued setting,
// such as GetPath("wifi", "networks.0.ssid").
func (s *Store) GetPath(key, path string) (string, bool, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return "", false, nil
	}
	if !isJSON(v) {
		return "", false, ErrNotJSON
	}
	r := gjson.Get(v, path)
	if !r.Exists() {
		return "", false, nil
	}
	if r.IsObject() || r.IsArray() {
		return r.Raw, true, nil
	}
	return r.String(), true, nil
}

// SetPath sets the field at a sjson path inside a JSON-valued setting,
// creating the setting as an object if it does not exist. A value that is
// itself valid JSON (a number, boolean, array or object) is stored raw;
// anything else is stored as a string.
func (s *Store) SetPath(key, path, value string) error {
	v, ok := s.Lookup(key)
	if !ok {
		v = "{}"
	} else if !isJSON(v) {
		return ErrNotJSON
	}
	var err error
	if gjson.Valid(value) {
		v, err = sjson.SetRaw(v, path, value)
	} else {
		v, err = sjson.Set(v, path, value)
	}
	if err != nil {
		return err
	}
	return s.Write(key, v)
}
