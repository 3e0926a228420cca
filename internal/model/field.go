package model

import (
	"fmt"
)

// Field identifies one extracted attribute of a receipt.
type Field string

// Receipt field constants.
const (
	FieldReceiptType    Field = "receipt_type"
	FieldAmount         Field = "amount"
	FieldDate           Field = "date"
	FieldBuyerName      Field = "buyer_name"
	FieldSellerName     Field = "seller_name"
	FieldInvoiceCode    Field = "invoice_code"
	FieldInvoiceNumber  Field = "invoice_number"
	FieldExpenseType    Field = "expense_type"
	FieldDeparturePlace Field = "departure_place"
	FieldDestination    Field = "destination"
	FieldFileName       Field = "file_name"
	FieldRemarks        Field = "remarks"
)

// FieldKind is the semantic type of a field's value.
type FieldKind int

// Field kinds.
const (
	KindText FieldKind = iota + 1
	KindNumber
	KindDate
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// AllFields returns the closed set of receipt fields in display order.
func AllFields() []Field {
	return []Field{
		FieldReceiptType,
		FieldAmount,
		FieldDate,
		FieldBuyerName,
		FieldSellerName,
		FieldInvoiceCode,
		FieldInvoiceNumber,
		FieldExpenseType,
		FieldDeparturePlace,
		FieldDestination,
		FieldFileName,
		FieldRemarks,
	}
}

// ParseField converts a stored identifier into a Field.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown field %q", s)
	}
	return f, nil
}

// Valid reports whether f belongs to the closed field set.
func (f Field) Valid() bool {
	switch f {
	case FieldReceiptType, FieldAmount, FieldDate, FieldBuyerName, FieldSellerName,
		FieldInvoiceCode, FieldInvoiceNumber, FieldExpenseType, FieldDeparturePlace,
		FieldDestination, FieldFileName, FieldRemarks:
		return true
	}
	return false
}

// Kind returns the semantic type of the field.
// It panics for identifiers outside the closed set: rules are validated when
// they are authored or loaded, so reaching here with an unknown field means the
// stored schema and the binary disagree.
func (f Field) Kind() FieldKind {
	switch f {
	case FieldAmount:
		return KindNumber
	case FieldDate:
		return KindDate
	case FieldReceiptType, FieldBuyerName, FieldSellerName, FieldInvoiceCode,
		FieldInvoiceNumber, FieldExpenseType, FieldDeparturePlace, FieldDestination,
		FieldFileName, FieldRemarks:
		return KindText
	}
	panic(fmt.Sprintf("model: unknown field %q", string(f)))
}
