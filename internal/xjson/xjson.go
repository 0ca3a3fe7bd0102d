// Package xjson — единая точка сериализации JSON.
//
// Весь код сервиса импортирует xjson вместо encoding/json, что позволяет
// менять реализацию кодека без правки вызывающих мест.
package xjson

import (
	stdjson "encoding/json"
	"io"

	gjson "github.com/goccy/go-json"
)

// RawMessage совместим с encoding/json.RawMessage.
type RawMessage = stdjson.RawMessage

// Marshal сериализует значение в JSON.
func Marshal(v any) ([]byte, error) {
	return gjson.Marshal(v)
}

// MarshalIndent сериализует значение в JSON с отступами.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gjson.MarshalIndent(v, prefix, indent)
}

// Unmarshal разбирает JSON в значение.
func Unmarshal(data []byte, v any) error {
	return gjson.Unmarshal(data, v)
}

// NewEncoder возвращает encoder, пишущий в w.
func NewEncoder(w io.Writer) *gjson.Encoder {
	return gjson.NewEncoder(w)
}

// NewDecoder возвращает decoder, читающий из r.
func NewDecoder(r io.Reader) *gjson.Decoder {
	return gjson.NewDecoder(r)
}
