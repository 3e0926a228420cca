package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    model.Condition
		wantErr bool
	}{
		{
			name:  "simple",
			input: "expense_type:EQUALS:meal",
			want:  model.Condition{Field: model.FieldExpenseType, Operator: model.OpEquals, Value: "meal"},
		},
		{
			name:  "lowercase operator",
			input: "amount:greater_than:100",
			want:  model.Condition{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "100"},
		},
		{
			name:  "trailing logical",
			input: "receipt_type:EQUALS:TAXI:OR",
			want: model.Condition{
				Field: model.FieldReceiptType, Operator: model.OpEquals, Value: "TAXI", Logical: model.LogicalOr,
			},
		},
		{
			name:  "value with colons",
			input: "remarks:REGEX:^a:b$",
			want:  model.Condition{Field: model.FieldRemarks, Operator: model.OpRegex, Value: "^a:b$"},
		},
		{
			name:    "too few parts",
			input:   "amount:EQUALS",
			wantErr: true,
		},
		{
			name:    "unknown field",
			input:   "color:EQUALS:red",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCondition(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConditions_FillsJoiners(t *testing.T) {
	conds, err := parseConditions([]string{
		"receipt_type:EQUALS:TAXI:OR",
		"seller_name:CONTAINS:Cab",
		"amount:LESS_THAN:500",
	})
	require.NoError(t, err)
	require.Len(t, conds, 3)

	assert.Equal(t, model.LogicalOr, conds[0].Logical)
	assert.Equal(t, model.LogicalAnd, conds[1].Logical)
	assert.Empty(t, conds[2].Logical, "last joiner is left as given")
}

func TestParseAction(t *testing.T) {
	a, err := parseAction("set_category=TRAVEL")
	require.NoError(t, err)
	assert.Equal(t, model.Action{Type: model.ActionSetCategory, Value: "TRAVEL"}, a)

	a, err = parseAction("GENERATE_ARCHIVE_NUMBER")
	require.NoError(t, err)
	assert.Equal(t, model.ActionGenerateArchiveNumber, a.Type)
	assert.Empty(t, a.Value)

	_, err = parseAction("PAINT=red")
	assert.Error(t, err)
}

func TestParseFields(t *testing.T) {
	bag, err := parseFields([]string{"amount=1,200.50", "seller_name=Cafe=Bar", "date=2024-03-15"})
	require.NoError(t, err)

	n, ok := bag[model.FieldAmount].Number()
	require.True(t, ok)
	assert.Equal(t, "1200.5", n.String())
	assert.Equal(t, "Cafe=Bar", bag[model.FieldSellerName].Text())
	assert.Equal(t, model.ValueDate, bag[model.FieldDate].Kind())

	_, err = parseFields([]string{"amount"})
	assert.Error(t, err)

	_, err = parseFields([]string{"colour=red"})
	assert.Error(t, err)
}

func TestParseAttributes(t *testing.T) {
	attrs, err := parseAttributes([]string{"category=travel", "project= apollo "})
	require.NoError(t, err)
	assert.Equal(t, map[model.Attribute]string{
		model.AttrCategory: "TRAVEL",
		model.AttrProject:  "apollo",
	}, attrs)

	_, err = parseAttributes([]string{"category=SNACKS"})
	assert.Error(t, err)

	_, err = parseAttributes([]string{"colour=red"})
	assert.Error(t, err)
}

func TestFormatCondition(t *testing.T) {
	c := model.Condition{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "100", Logical: model.LogicalAnd}
	assert.Equal(t, `amount GREATER_THAN "100" AND`, formatCondition(c))
	assert.Equal(t, "SET_CATEGORY=TRAVEL", formatAction(model.Action{Type: model.ActionSetCategory, Value: "TRAVEL"}))
	assert.Equal(t, "GENERATE_ARCHIVE_NUMBER", formatAction(model.Action{Type: model.ActionGenerateArchiveNumber}))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "a long ...", truncateString("a long description", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}
