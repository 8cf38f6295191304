package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number — число, которое сервер может прислать как JSON-число или как строку
// (значения прогресса хранятся в Redis-хэше и возвращаются строками).
type Number float64

// UnmarshalJSON реализует json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("некорректное число %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("некорректное число: %w", err)
	}
	*n = Number(f)
	return nil
}

// Int возвращает значение, округлённое вниз до целого.
func (n Number) Int() int {
	return int(n)
}

// Float возвращает значение как float64.
func (n Number) Float() float64 {
	return float64(n)
}
