package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ehr/intake/internal/domain/records"
)

// Answer is the mandatory top-level yes/no question of a section
// ("any past history?"). The zero value means unanswered.
type Answer string

const (
	Unanswered Answer = ""
	AnswerYes  Answer = "yes"
	AnswerNo   Answer = "no"
)

var ErrInvalidAnswer = errors.New("invalid answer")

func ParseAnswer(s string) (Answer, error) {
	switch Answer(s) {
	case Unanswered, AnswerYes, AnswerNo:
		return Answer(s), nil
	}
	return Unanswered, fmt.Errorf("%w: %q", ErrInvalidAnswer, s)
}

// Snapshot is a saved visit. It is never modified after creation; readers
// receive copies.
type Snapshot[T records.Entity[T]] struct {
	ID     string
	Date   string
	Answer Answer
	Items  []T
}

func (s Snapshot[T]) clone() Snapshot[T] {
	c := s
	c.Items = make([]T, len(s.Items))
	for i, it := range s.Items {
		c.Items[i] = it.Clone()
	}
	return c
}

// Codec converts a snapshot sequence to and from the persisted JSON array.
// ItemsField is the name of the collection property ("conditions",
// "records", ...).
type Codec[T records.Entity[T]] struct {
	ItemsField string
}

func (c Codec[T]) Marshal(snaps []Snapshot[T]) ([]byte, error) {
	out := make([]map[string]any, 0, len(snaps))
	for _, s := range snaps {
		items := s.Items
		if items == nil {
			items = []T{}
		}
		m := map[string]any{
			"id":         s.ID,
			"date":       s.Date,
			c.ItemsField: items,
		}
		if s.Answer != Unanswered {
			m["answer"] = s.Answer
		}
		out = append(out, m)
	}
	return json.Marshal(out)
}

// Unmarshal decodes a persisted array. Any payload that is not a JSON array of
// objects is an error.
func (c Codec[T]) Unmarshal(data []byte) ([]Snapshot[T], error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	snaps := make([]Snapshot[T], 0, len(raw))
	for i, m := range raw {
		if m == nil {
			return nil, fmt.Errorf("snapshot %d: not an object", i)
		}
		var s Snapshot[T]
		if err := decodeField(m, "id", &s.ID); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		if err := decodeField(m, "date", &s.Date); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		if err := decodeField(m, "answer", &s.Answer); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		items, err := decodeItems[T](m, c.ItemsField)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		s.Items = items
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// decodeItems decodes the items array element by element. Every element must
// be a JSON object; null would decode to a nil item.
func decodeItems[T any](m map[string]json.RawMessage, name string) ([]T, error) {
	var raws []json.RawMessage
	if err := decodeField(m, name, &raws); err != nil {
		return nil, err
	}
	items := make([]T, 0, len(raws))
	for j, raw := range raws {
		if b := bytes.TrimSpace(raw); len(b) == 0 || b[0] != '{' {
			return nil, fmt.Errorf("field %s: item %d is not an object", name, j)
		}
		var it T
		if err := json.Unmarshal(raw, &it); err != nil {
			return nil, fmt.Errorf("field %s: item %d: %w", name, j, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeField(m map[string]json.RawMessage, name string, dst any) error {
	raw, ok := m[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	return nil
}
