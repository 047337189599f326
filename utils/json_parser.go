package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Unmarshal wraps json.Unmarshal and reports the line and column of
// the offending byte on parse errors. Config files are hand edited
// and the stock offset-only message is hard to act on.
func Unmarshal(data []byte, v interface{}) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	var offset int64 = -1
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
	case *json.UnmarshalTypeError:
		offset = e.Offset
	}

	if offset < 0 || offset > int64(len(data)) {
		return err
	}

	line := 1 + bytes.Count(data[:offset], []byte("\n"))
	lineStart := bytes.LastIndexByte(data[:offset], '\n') + 1
	col := int(offset) - lineStart + 1

	return fmt.Errorf("%v at line %d, column %d", err, line, col)
}
