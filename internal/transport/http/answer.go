package http

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// flexibleAnswer accepts a JSON string, boolean or number. Booleans render as
// "True"/"False" to match true/false questions.
type flexibleAnswer string

func (a *flexibleAnswer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = flexibleAnswer(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		if b {
			*a = "True"
		} else {
			*a = "False"
		}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer must be a string, boolean or number")
		}
		*a = flexibleAnswer(n.String())
	}
	return nil
}
