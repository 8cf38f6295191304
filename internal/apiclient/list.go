package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// listBody — список приходит либо массивом, либо объектом с массивом
// в одном из полей и счётчиками.
type listBody[T any] struct {
	Items      []T
	Total      int
	TotalPages int
	NextCursor string
}

func (l *listBody[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &l.Items); err != nil {
			return err
		}
		l.Total = len(l.Items)
		return nil
	}

	var obj struct {
		Books      []T    `json:"books"`
		Copies     []T    `json:"copies"`
		Results    []T    `json:"results"`
		Items      []T    `json:"items"`
		Users      []T    `json:"users"`
		Total      *int   `json:"total"`
		Count      *int   `json:"count"`
		TotalPages int    `json:"total_pages"`
		Pages      int    `json:"pages"`
		NextCursor string `json:"next_cursor"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("неожиданный формат списка: %w", err)
	}

	for _, items := range [][]T{obj.Books, obj.Copies, obj.Results, obj.Items, obj.Users} {
		if items != nil {
			l.Items = items
			break
		}
	}
	switch {
	case obj.Total != nil:
		l.Total = *obj.Total
	case obj.Count != nil:
		l.Total = *obj.Count
	default:
		l.Total = len(l.Items)
	}
	l.TotalPages = max(obj.TotalPages, obj.Pages)
	l.NextCursor = obj.NextCursor
	return nil
}
