package model

import (
	"bytes"
	"fmt"
	"strconv"
)

// FlexInt decodes an integer sent either as a JSON number or a quoted string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || string(raw) == "null" {
		*f = 0
		return nil
	}
	val, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("parse int %q: %w", raw, err)
	}
	*f = FlexInt(val)
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(f), 10)), nil
}

func (f FlexInt) String() string {
	return strconv.FormatInt(int64(f), 10)
}

// FlexString decodes a value sent either as a JSON string or a bare number.
// BigInt amounts arrive as strings but some gateways emit them unquoted.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if string(raw) == "null" {
		*f = ""
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		unquoted, err := strconv.Unquote(string(raw))
		if err != nil {
			return fmt.Errorf("parse string: %w", err)
		}
		*f = FlexString(unquoted)
		return nil
	}
	*f = FlexString(raw)
	return nil
}
