package rules

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
)

func TestExportImport(t *testing.T) {
	in := SystemRules()
	in = append(in, model.Rule{
		Name:     "Client dinners",
		Priority: 40,
		Enabled:  false,
		Conditions: []model.Condition{
			{Field: model.FieldExpenseType, Operator: model.OpEquals, Value: "meal", Logical: model.LogicalAnd},
			{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "200"},
		},
		Actions: []model.Action{
			{Type: model.ActionAddTag, Value: "client"},
			{Type: model.ActionSetCategory, Value: "EXPENSE"},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, in))
	assert.Contains(t, buf.String(), "version: 1")

	out, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestImport_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "wrong version",
			input:   "version: 2\nrules: []\n",
			wantErr: "unsupported rule file version",
		},
		{
			name:    "unknown key",
			input:   "version: 1\nrules:\n  - name: x\n    colour: red\n",
			wantErr: "failed to decode",
		},
		{
			name: "invalid rule",
			input: `version: 1
rules:
  - name: bad
    enabled: true
    conditions:
      - field: amount
        operator: CONTAINS
        value: "1"
    actions: []
`,
			wantErr: "rule 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImport_InvalidRuleWrapsSentinel(t *testing.T) {
	_, err := Import(strings.NewReader("version: 1\nrules:\n  - name: \"\"\n"))
	assert.ErrorIs(t, err, common.ErrInvalidRule)
}
