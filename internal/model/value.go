package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical text form for date values and date comparison values.
const DateLayout = "2006-01-02"

// ValueKind discriminates the concrete type held by a Value.
type ValueKind string

// Value kinds.
const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueDate   ValueKind = "date"
)

// Value is one raw field value taken from OCR output or manual entry.
type Value struct {
	date time.Time
	num  decimal.Decimal
	kind ValueKind
	text string
}

// StringValue wraps free text.
func StringValue(s string) Value {
	return Value{kind: ValueString, text: s}
}

// NumberValue wraps a decimal amount.
func NumberValue(d decimal.Decimal) Value {
	return Value{kind: ValueNumber, num: d}
}

// DateValue wraps a calendar date; the time of day is dropped.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: ValueDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseValue builds a Value of the given kind from its text form.
func ParseValue(kind ValueKind, s string) (Value, error) {
	switch kind {
	case ValueString:
		return StringValue(s), nil
	case ValueNumber:
		d, err := ParseDecimal(s)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(d), nil
	case ValueDate:
		t, err := ParseDate(s)
		if err != nil {
			return Value{}, err
		}
		return DateValue(t), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %q", kind)
}

// Kind returns the concrete type held.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Text returns the canonical text form used by string operators.
func (v Value) Text() string {
	switch v.kind {
	case ValueNumber:
		return v.num.String()
	case ValueDate:
		return v.date.Format(DateLayout)
	default:
		return v.text
	}
}

// Number returns the value as a decimal, parsing text if needed.
func (v Value) Number() (decimal.Decimal, bool) {
	switch v.kind {
	case ValueNumber:
		return v.num, true
	case ValueString:
		d, err := ParseDecimal(v.text)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// Date returns the value as a calendar date, parsing text if needed.
func (v Value) Date() (time.Time, bool) {
	switch v.kind {
	case ValueDate:
		return v.date, true
	case ValueString:
		t, err := ParseDate(v.text)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Equal reports whether two values hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueNumber:
		return v.num.Equal(o.num)
	case ValueDate:
		return v.date.Equal(o.date)
	default:
		return v.text == o.text
	}
}

func (v Value) String() string {
	return v.Text()
}

// ParseDecimal parses a decimal amount, tolerating surrounding blanks and
// thousands separators as printed on receipts.
func ParseDecimal(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return d, nil
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FieldBag maps receipt fields to their raw values. The engine treats it as read-only.
type FieldBag map[Field]Value

// NewFieldBag types raw text values by the kind of each field. Values that do
// not parse as their field's kind are kept as text so rules can still see them.
func NewFieldBag(raw map[string]string) (FieldBag, error) {
	bag := make(FieldBag, len(raw))
	for name, text := range raw {
		f, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		bag[f] = typedValue(f, text)
	}
	return bag, nil
}

func typedValue(f Field, text string) Value {
	switch f.Kind() {
	case KindNumber:
		if d, err := ParseDecimal(text); err == nil {
			return NumberValue(d)
		}
	case KindDate:
		if t, err := ParseDate(text); err == nil {
			return DateValue(t)
		}
	case KindText:
	}
	return StringValue(text)
}

// Raw returns the bag as field name to text form.
func (b FieldBag) Raw() map[string]string {
	out := make(map[string]string, len(b))
	for f, v := range b {
		out[string(f)] = v.Text()
	}
	return out
}

// MarshalJSON encodes the bag as a flat object of text values.
func (b FieldBag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Raw())
}

// UnmarshalJSON accepts string, number or null members.
func (b *FieldBag) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	text := make(map[string]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			text[k] = x
		case float64:
			text[k] = decimal.NewFromFloat(x).String()
		default:
			return fmt.Errorf("field %q: unsupported value %v", k, v)
		}
	}
	bag, err := NewFieldBag(text)
	if err != nil {
		return err
	}
	*b = bag
	return nil
}
