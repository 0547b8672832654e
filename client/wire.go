package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StatusOK is the value of the upstream "status" field on success.
const StatusOK = 2

// Envelope is the common shape of every upstream JSON response.
type Envelope struct {
	Status    LooseInt        `json:"status"`
	Parametri json.RawMessage `json:"parametri"`
	Messaggio LooseString     `json:"messaggio"`
}

// OK reports whether the upstream signalled success.
func (e *Envelope) OK() bool {
	return int(e.Status) == StatusOK
}

// DecodeParametri unmarshals the payload mapping into v.
func (e *Envelope) DecodeParametri(v interface{}) error {
	if len(e.Parametri) == 0 || bytes.Equal(e.Parametri, []byte("null")) {
		return fmt.Errorf("response has no parametri")
	}
	return json.Unmarshal(e.Parametri, v)
}

// LooseString accepts a JSON string, number or bool and keeps its text.
// The upstream API is not consistent about quoting ids and codes.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("cannot decode %s into a string", string(b))
	}
	*s = LooseString(b)
	return nil
}

func (s LooseString) String() string {
	return string(s)
}

// LooseInt accepts a JSON number or a numeric string. A string holding
// anything else (e.g. "n/d") decodes to 0.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			Debugf("non numeric value %s decoded as 0", string(b))
			v = 0
		}
		*n = LooseInt(int(v))
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("cannot decode %s into an int: %w", string(b), err)
	}
	*n = LooseInt(int(v))
	return nil
}
