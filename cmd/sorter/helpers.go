package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/config"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/storage"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// loadConfig resolves the configuration from flags, environment and config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid configuration", err)
	}
	return cfg, nil
}

// initStorage opens and migrates the database and seeds the system rules.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, nil, common.NewUserError("could not open the database", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}

	if err := store.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	added, err := store.SeedSystemRules(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to seed system rules: %w", err)
	}
	if added > 0 {
		slog.Debug("Seeded system rules", "count", added)
	}

	return store, cleanup, nil
}

// parseCondition parses field:OPERATOR:value[:AND|OR]. The value may itself
// contain colons; a trailing :AND or :OR is taken as the logical operator.
func parseCondition(s string) (model.Condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 3 {
		return model.Condition{}, fmt.Errorf("condition %q: want field:OPERATOR:value[:AND|OR]", s)
	}

	field, err := model.ParseField(strings.TrimSpace(parts[0]))
	if err != nil {
		return model.Condition{}, fmt.Errorf("condition %q: %w", s, err)
	}
	c := model.Condition{
		Field:    field,
		Operator: model.Operator(strings.ToUpper(strings.TrimSpace(parts[1]))),
		Value:    parts[2],
	}

	for _, l := range []model.LogicalOperator{model.LogicalAnd, model.LogicalOr} {
		suffix := ":" + string(l)
		if strings.HasSuffix(strings.ToUpper(c.Value), suffix) {
			c.Value = c.Value[:len(c.Value)-len(suffix)]
			c.Logical = l
			break
		}
	}
	return c, nil
}

// parseConditions parses every flag value and fills in AND between
// conditions that did not name a joiner.
func parseConditions(raw []string) ([]model.Condition, error) {
	conds := make([]model.Condition, 0, len(raw))
	for _, s := range raw {
		c, err := parseCondition(s)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	for i := 0; i < len(conds)-1; i++ {
		if conds[i].Logical == "" {
			conds[i].Logical = model.LogicalAnd
		}
	}
	return conds, nil
}

// parseAction parses TYPE=value or a bare TYPE.
func parseAction(s string) (model.Action, error) {
	typ, value, _ := strings.Cut(s, "=")
	a := model.Action{
		Type:  model.ActionType(strings.ToUpper(strings.TrimSpace(typ))),
		Value: strings.TrimSpace(value),
	}
	if !a.Type.Valid() {
		return model.Action{}, fmt.Errorf("action %q: unknown action type %q", s, typ)
	}
	return a, nil
}

func parseActions(raw []string) ([]model.Action, error) {
	actions := make([]model.Action, 0, len(raw))
	for _, s := range raw {
		a, err := parseAction(s)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// parseFields turns key=value flags into a field bag.
func parseFields(raw []string) (model.FieldBag, error) {
	fields := make(map[string]string, len(raw))
	for _, s := range raw {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("field %q: want name=value", s)
		}
		fields[strings.TrimSpace(k)] = v
	}
	return model.NewFieldBag(fields)
}

func formatCondition(c model.Condition) string {
	s := fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value)
	if c.Logical != "" {
		s += " " + string(c.Logical)
	}
	return s
}

func formatAction(a model.Action) string {
	if a.Value == "" {
		return string(a.Type)
	}
	return fmt.Sprintf("%s=%s", a.Type, a.Value)
}

func formatConditions(cs []model.Condition) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = formatCondition(c)
	}
	return strings.Join(parts, " ")
}

func formatActions(as []model.Action) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = formatAction(a)
	}
	return strings.Join(parts, ", ")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
