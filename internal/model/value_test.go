package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "42", want: "42"},
		{input: " 42.50 ", want: "42.5"},
		{input: "1,234.56", want: "1234.56"},
		{input: "-3", want: "-3"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimal(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseDecimal(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestValue_Conversions(t *testing.T) {
	n := NumberValue(decimal.RequireFromString("12.50"))
	if n.Text() != "12.5" {
		t.Errorf("number text = %q", n.Text())
	}
	if _, ok := n.Date(); ok {
		t.Error("number should not convert to date")
	}

	d := DateValue(time.Date(2024, 3, 15, 18, 30, 0, 0, time.FixedZone("X", 3600)))
	if d.Text() != "2024-03-15" {
		t.Errorf("date text = %q", d.Text())
	}

	s := StringValue("2024-03-15")
	got, ok := s.Date()
	if !ok || !got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("string date = %v, %v", got, ok)
	}
	if _, ok := StringValue("n/a").Number(); ok {
		t.Error("n/a should not convert to number")
	}
}

func TestValue_Equal(t *testing.T) {
	a := NumberValue(decimal.RequireFromString("1.0"))
	b := NumberValue(decimal.RequireFromString("1"))
	if !a.Equal(b) {
		t.Error("1.0 and 1 should be equal")
	}
	if a.Equal(StringValue("1")) {
		t.Error("values of different kinds should not be equal")
	}
}

func TestNewFieldBag(t *testing.T) {
	bag, err := NewFieldBag(map[string]string{
		"amount":       "99.90",
		"date":         "2024-02-29",
		"seller_name":  "Cafe",
		"invoice_code": "007",
	})
	if err != nil {
		t.Fatal(err)
	}

	if bag[FieldAmount].Kind() != ValueNumber {
		t.Errorf("amount kind = %s", bag[FieldAmount].Kind())
	}
	if bag[FieldDate].Kind() != ValueDate {
		t.Errorf("date kind = %s", bag[FieldDate].Kind())
	}
	if bag[FieldInvoiceCode].Text() != "007" {
		t.Errorf("text field changed: %q", bag[FieldInvoiceCode].Text())
	}

	bad, err := NewFieldBag(map[string]string{"amount": "unknown"})
	if err != nil {
		t.Fatal(err)
	}
	if bad[FieldAmount].Kind() != ValueString {
		t.Error("unparseable amount should be kept as text")
	}

	if _, err := NewFieldBag(map[string]string{"colour": "red"}); err == nil {
		t.Error("unknown field should fail")
	}
}

func TestFieldBag_JSON(t *testing.T) {
	var bag FieldBag
	if err := json.Unmarshal([]byte(`{"amount": 12.5, "seller_name": "Cafe", "remarks": null}`), &bag); err != nil {
		t.Fatal(err)
	}
	if len(bag) != 2 {
		t.Fatalf("bag = %v, want 2 fields", bag)
	}
	if n, ok := bag[FieldAmount].Number(); !ok || n.String() != "12.5" {
		t.Errorf("amount = %v", bag[FieldAmount])
	}

	out, err := json.Marshal(bag)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"amount":"12.5","seller_name":"Cafe"}` {
		t.Errorf("marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"amount": true}`), &bag); err == nil {
		t.Error("boolean member should fail")
	}
}

func TestField_Kind(t *testing.T) {
	for _, f := range AllFields() {
		if !f.Valid() {
			t.Errorf("%s should be valid", f)
		}
		_ = f.Kind()
	}

	defer func() {
		if recover() == nil {
			t.Error("Kind on an unknown field should panic")
		}
	}()
	_ = Field("colour").Kind()
}
