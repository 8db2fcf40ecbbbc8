package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// * Entity is a backend object passed through untouched, users and repos alike.
// * Numbers are kept as json.Number so ids survive a round trip unchanged.
type Entity map[string]any

// * ID renders the entity's id attribute as a string whatever its JSON type
func (e Entity) ID() string {
	return e.String("id")
}

// * String renders the named attribute as a string, "" when absent or null
func (e Entity) String(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// * DecodeEntity parses a single JSON object
func DecodeEntity(body []byte) (Entity, error) {
	var e Entity
	if err := decode(body, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// * DecodeEntities parses a JSON array of objects; a null body yields an empty slice
func DecodeEntities(body []byte) ([]Entity, error) {
	var list []Entity
	if err := decode(body, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Entity{}
	}
	return list, nil
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}
