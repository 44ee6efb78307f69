package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CardValue is the value printed on a card: either a number or a free-form
// string such as "☕". It encodes as a JSON number or a JSON string.
type CardValue struct {
	str     string
	num     float64
	numeric bool
}

func NumberValue(n float64) CardValue {
	return CardValue{num: n, numeric: true}
}

func StringValue(s string) CardValue {
	return CardValue{str: s}
}

// ParseCardValue turns user input into a card value, keeping it as a number
// when the whole string is a base-10 number.
func ParseCardValue(s string) CardValue {
	if n, ok := parseDecimal(s); ok {
		return NumberValue(n)
	}
	return StringValue(s)
}

func (v CardValue) IsNumber() bool {
	return v.numeric
}

// Numeric returns the value coerced to a number. String values count as
// numeric only when they are a plain base-10 number with nothing around it.
func (v CardValue) Numeric() (float64, bool) {
	if v.numeric {
		return v.num, true
	}
	return parseDecimal(v.str)
}

// Key is the canonical tally key. A number and its string form share a key.
func (v CardValue) Key() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

func (v CardValue) String() string {
	return v.Key()
}

func (v CardValue) Equal(other CardValue) bool {
	return v.Key() == other.Key()
}

func (v CardValue) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

func (v *CardValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("card value cannot be null")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("card value must be a number or a string: %w", err)
	}
	*v = NumberValue(n)
	return nil
}

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
