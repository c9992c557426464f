// Package delta encodes rich-text documents expressed as a sequence of
// insert/retain/delete operations.
package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kartikgopal01/coedit/internal/domain"
)

// ContentType is the media type snapshots are stored with.
const ContentType = "application/json"

// Op is a single delta operation. At least one of Insert, Retain or Delete is set.
type Op struct {
	Insert     any            `json:"insert,omitempty"`
	Retain     *int           `json:"retain,omitempty"`
	Delete     *int           `json:"delete,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Delta is a document body.
type Delta struct {
	Ops []Op `json:"ops"`
}

// Text returns a delta holding a single plain-text insert.
func Text(s string) Delta {
	return Delta{Ops: []Op{{Insert: s}}}
}

// Validate reports the first op that sets none of insert, retain or delete.
func Validate(d Delta) error {
	for i, o := range d.Ops {
		if err := validateOp(o); err != nil {
			return domain.E(domain.KindMalformedContent, "delta.Validate", fmt.Errorf("op %d: %w", i, err))
		}
	}
	return nil
}

func validateOp(o Op) error {
	if o.Insert == nil && o.Retain == nil && o.Delete == nil {
		return fmt.Errorf("needs one of insert, retain or delete")
	}
	return nil
}

// Encode serializes d to the canonical stored form {"ops":[...]}. Invalid
// ops are rejected so nothing undecodable is ever written.
func Encode(d Delta) ([]byte, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}
	if d.Ops == nil {
		d.Ops = []Op{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, domain.E(domain.KindMalformedContent, "delta.Encode", err)
	}
	return b, nil
}

// Decode parses either the {"ops":[...]} wrapper or a bare array of ops.
func Decode(data []byte) (Delta, error) {
	const op = "delta.Decode"
	raw, err := opsPayload(data)
	if err != nil {
		return Delta{}, domain.E(domain.KindMalformedContent, op, err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return Delta{}, domain.E(domain.KindMalformedContent, op, fmt.Errorf("ops is not a sequence"))
	}
	out := Delta{Ops: make([]Op, 0, len(elems))}
	for i, e := range elems {
		o, err := decodeOp(e)
		if err != nil {
			return Delta{}, domain.E(domain.KindMalformedContent, op, fmt.Errorf("op %d: %w", i, err))
		}
		out.Ops = append(out.Ops, o)
	}
	return out, nil
}

// Parse validates an already-decoded JSON value (as produced by
// encoding/json into an any) and returns it as a Delta.
func Parse(v any) (Delta, error) {
	if v == nil {
		return Delta{}, domain.E(domain.KindMalformedContent, "delta.Parse", fmt.Errorf("content is empty"))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Delta{}, domain.E(domain.KindMalformedContent, "delta.Parse", err)
	}
	return Decode(b)
}

func opsPayload(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("content is empty")
	}
	switch trimmed[0] {
	case '[':
		return trimmed, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		ops, ok := wrapper["ops"]
		if !ok {
			return nil, fmt.Errorf("missing ops")
		}
		if bytes.Equal(bytes.TrimSpace(ops), []byte("null")) {
			return nil, fmt.Errorf("ops is null")
		}
		return ops, nil
	default:
		return nil, fmt.Errorf("content is not a sequence of ops")
	}
}

func decodeOp(raw json.RawMessage) (Op, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Op{}, fmt.Errorf("not an object")
	}
	_, hasInsert := fields["insert"]
	_, hasRetain := fields["retain"]
	_, hasDelete := fields["delete"]
	if !hasInsert && !hasRetain && !hasDelete {
		return Op{}, fmt.Errorf("needs one of insert, retain or delete")
	}
	var o Op
	if err := json.Unmarshal(raw, &o); err != nil {
		return Op{}, err
	}
	if hasInsert && o.Insert == nil {
		return Op{}, fmt.Errorf("insert is null")
	}
	if err := validateOp(o); err != nil {
		return Op{}, err
	}
	return o, nil
}

// PlainText concatenates the text inserts of d. Embeds count as one space.
func (d Delta) PlainText() string {
	var sb strings.Builder
	for _, o := range d.Ops {
		switch v := o.Insert.(type) {
		case nil:
		case string:
			sb.WriteString(v)
		default:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// ToPlainText decodes data and returns its plain text.
func ToPlainText(data []byte) (string, error) {
	d, err := Decode(data)
	if err != nil {
		return "", err
	}
	return d.PlainText(), nil
}

// Equal reports whether a and b have the same canonical encoding.
func Equal(a, b Delta) bool {
	ea, err := Encode(a)
	if err != nil {
		return false
	}
	eb, err := Encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}
