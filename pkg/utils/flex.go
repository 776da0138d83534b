package utils

import (
	"encoding/json"
	"fmt"
)

// FlexString decodes a JSON string or number into its text form. Web forms
// send phone numbers, row keys and days either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected string or number")
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }
