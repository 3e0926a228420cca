package rules

import "github.com/Veraticus/receipt-sorter/internal/model"

// SystemRules returns the rules seeded at first run. They cannot be deleted,
// only disabled or reordered.
func SystemRules() []model.Rule {
	return []model.Rule{
		{
			Name:        "Taxi receipts",
			Description: "Taxi and ride-hailing receipts are travel",
			Priority:    50,
			Enabled:     true,
			Conditions: []model.Condition{
				{Field: model.FieldReceiptType, Operator: model.OpEquals, Value: "TAXI"},
			},
			Actions: []model.Action{
				{Type: model.ActionSetCategory, Value: string(model.CategoryTravel)},
				{Type: model.ActionSetSubCategory, Value: string(model.SubCategoryTaxi)},
				{Type: model.ActionAddTag, Value: "transport"},
			},
			IsSystemRule: true,
		},
		{
			Name:        "Train tickets",
			Description: "Railway tickets are travel",
			Priority:    50,
			Enabled:     true,
			Conditions: []model.Condition{
				{Field: model.FieldReceiptType, Operator: model.OpInList, Value: "TRAIN, RAILWAY", Logical: model.LogicalOr},
				{Field: model.FieldSellerName, Operator: model.OpContains, Value: "Railway"},
			},
			Actions: []model.Action{
				{Type: model.ActionSetCategory, Value: string(model.CategoryTravel)},
				{Type: model.ActionSetSubCategory, Value: string(model.SubCategoryTrain)},
				{Type: model.ActionAddTag, Value: "transport"},
			},
			IsSystemRule: true,
		},
		{
			Name:        "Fallback",
			Description: "Anything with a source file that nothing else claimed",
			Priority:    0,
			Enabled:     true,
			Conditions: []model.Condition{
				{Field: model.FieldFileName, Operator: model.OpContains, Value: ""},
			},
			Actions: []model.Action{
				{Type: model.ActionSetCategory, Value: string(model.CategoryOther)},
			},
			IsSystemRule: true,
		},
	}
}
