package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp — момент времени в ответах API. Сервер отдаёт ISO 8601
// как с часовым поясом, так и без него (naive UTC), иногда с микросекундами.
// Пустая строка и null дают нулевое значение.
type Timestamp struct {
	time.Time
}

// timestampLayouts — поддерживаемые форматы в порядке проверки.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp разбирает строку в одном из форматов API.
// Время без пояса считается UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("некорректная дата %q", s)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("дата должна быть строкой: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON реализует json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Date форматирует дату для таблиц (пусто для нулевого значения).
func (t Timestamp) Date() string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
