package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrSerialization = errors.New("payload serialization failed")

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Marshal turns a payload into the bytes stored in the archive.
//
// Raw bytes are kept as they are, strings are taken as UTF-8 and streams are
// read to the end. Anything else is encoded as JSON; values JSON can't
// represent are stored as their fmt representation instead of failing.
func Marshal(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("null"), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	case io.Reader:
		b, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("%w: reading stream: %w", ErrSerialization, err)
		}
		return b, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return []byte(fmt.Sprint(payload)), nil
	}

	return b, nil
}

func ContentType(body []byte) string {
	if json.Valid(body) {
		return ContentTypeJSON
	}
	return ContentTypeText
}
