package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-sorter/internal/cli"
	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage classification rules",
		Long: `Manage the ordered rule list used to classify receipts.

Rules are evaluated by priority (highest first), ties broken by creation
order. The first enabled rule whose conditions match wins.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesEditCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesToggleCmd("enable", true))
	cmd.AddCommand(rulesToggleCmd("disable", false))
	cmd.AddCommand(rulesReorderCmd())
	cmd.AddCommand(rulesMoveCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesExportCmd())

	return cmd
}

func parseRuleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rule ID: %s", s)
	}
	return id, nil
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			enabledOnly, _ := cmd.Flags().GetBool("enabled")

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var list []model.Rule
			if enabledOnly {
				list, err = store.GetEnabledRules(ctx)
			} else {
				list, err = store.ListRules(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(list) == 0 {
				slog.Info("No rules found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "#\tID\tPRIORITY\tNAME\tENABLED\tCONDITIONS\tACTIONS")
			_, _ = fmt.Fprintln(w, "─\t──\t────────\t────\t───────\t──────────\t───────")

			for i, r := range list {
				name := truncateString(r.Name, 24)
				if r.IsSystemRule {
					name += " (system)"
				}
				_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%t\t%s\t%s\n",
					i+1,
					r.ID,
					r.Priority,
					name,
					r.Enabled,
					truncateString(formatConditions(r.Conditions), 48),
					truncateString(formatActions(r.Actions), 40))
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolP("enabled", "e", false, "Show only enabled rules")
	return cmd
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show rule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			r, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, cli.FormatTitle(r.Name))
			_, _ = fmt.Fprintln(out, cli.FormatDetail(
				"ID", strconv.FormatInt(r.ID, 10),
				"Description", r.Description,
				"Priority", strconv.Itoa(r.Priority),
				"Sequence", strconv.FormatInt(r.Sequence, 10),
				"Enabled", strconv.FormatBool(r.Enabled),
				"System", strconv.FormatBool(r.IsSystemRule),
				"Created", r.CreatedAt.Format("2006-01-02 15:04:05"),
				"Updated", r.UpdatedAt.Format("2006-01-02 15:04:05"),
			))

			_, _ = fmt.Fprintln(out, "\n"+cli.BoldStyle.Render("Conditions"))
			for i, c := range r.Conditions {
				_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, formatCondition(c))
			}
			_, _ = fmt.Fprintln(out, "\n"+cli.BoldStyle.Render("Actions"))
			for i, a := range r.Actions {
				_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, formatAction(a))
			}
			return nil
		},
	}
}

func addRuleBodyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("name", "n", "", "Rule name")
	cmd.Flags().StringP("description", "d", "", "Rule description")
	cmd.Flags().IntP("priority", "p", 0, "Priority (higher is evaluated first)")
	cmd.Flags().StringArrayP("condition", "c", nil, "Condition as field:OPERATOR:value[:AND|OR] (repeatable, in order)")
	cmd.Flags().StringArrayP("action", "a", nil, "Action as TYPE=value or TYPE (repeatable, in order)")
}

func rulesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rule",
		Example: `  sorter rules create -n "Dining" -p 10 \
    -c "expense_type:EQUALS:meal" \
    -a SET_CATEGORY=EXPENSE -a SET_SUB_CATEGORY=MEAL -a GENERATE_ARCHIVE_NUMBER`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			priority, _ := cmd.Flags().GetInt("priority")
			disabled, _ := cmd.Flags().GetBool("disabled")
			rawConds, _ := cmd.Flags().GetStringArray("condition")
			rawActions, _ := cmd.Flags().GetStringArray("action")

			conds, err := parseConditions(rawConds)
			if err != nil {
				return err
			}
			actions, err := parseActions(rawActions)
			if err != nil {
				return err
			}

			rule := &model.Rule{
				Name:        name,
				Description: description,
				Priority:    priority,
				Enabled:     !disabled,
				Conditions:  conds,
				Actions:     actions,
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.CreateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Created rule %d %q", rule.ID, rule.Name)))
			return nil
		},
	}

	addRuleBodyFlags(cmd)
	cmd.Flags().Bool("disabled", false, "Create the rule disabled")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	return cmd
}

func rulesEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a rule",
		Long: `Edit a rule. Only the flags given are changed; --condition and --action
replace the whole list when given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				rule.Name, _ = flags.GetString("name")
			}
			if flags.Changed("description") {
				rule.Description, _ = flags.GetString("description")
			}
			if flags.Changed("priority") {
				rule.Priority, _ = flags.GetInt("priority")
			}
			if flags.Changed("enable") {
				rule.Enabled = true
			}
			if flags.Changed("disable") {
				rule.Enabled = false
			}
			if flags.Changed("condition") {
				raw, _ := flags.GetStringArray("condition")
				if rule.Conditions, err = parseConditions(raw); err != nil {
					return err
				}
			}
			if flags.Changed("action") {
				raw, _ := flags.GetStringArray("action")
				if rule.Actions, err = parseActions(raw); err != nil {
					return err
				}
			}

			if err := store.UpdateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to update rule: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated rule %d", rule.ID)))
			return nil
		},
	}

	addRuleBodyFlags(cmd)
	cmd.Flags().Bool("enable", false, "Enable the rule")
	cmd.Flags().Bool("disable", false, "Disable the rule")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
	return cmd
}

func rulesToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.SetRuleEnabled(ctx, id, enabled); err != nil {
				return fmt.Errorf("failed to %s rule %d: %w", verb, id, err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Rule %d %sd", id, verb)))
			return nil
		},
	}
}

func rulesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			yes, _ := cmd.Flags().GetBool("yes")

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			if !yes {
				reader := cli.NewLineReader(cmd.InOrStdin())
				ok, err := reader.Confirm(ctx, cmd.OutOrStdout(), fmt.Sprintf("Delete rule %d %q?", rule.ID, rule.Name))
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Canceled"))
					return nil
				}
			}

			if err := store.DeleteRule(ctx, id); err != nil {
				if errors.Is(err, common.ErrSystemRule) {
					return common.NewUserError(
						fmt.Sprintf("rule %d is a system rule; disable it with: sorter rules disable %d", id, id), err)
				}
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func rulesReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id> <id>...",
		Short: "Set the evaluation order of every rule",
		Long: `Renumber priorities so rules are evaluated in the order given.
Every rule must be listed exactly once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids := make([]int64, len(args))
			for i, a := range args {
				id, err := parseRuleID(a)
				if err != nil {
					return err
				}
				ids[i] = id
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.ReorderRules(ctx, ids); err != nil {
				return fmt.Errorf("failed to reorder rules: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reordered %d rules", len(ids))))
			return nil
		},
	}
}

func rulesMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move one rule to a position in the evaluation order (1 = first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return fmt.Errorf("invalid position: %s", args[1])
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.MoveRule(ctx, id, position-1); err != nil {
				return fmt.Errorf("failed to move rule: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Moved rule %d to position %d", id, position)))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [id]",
		Short: "Evaluate rules against sample fields",
		Long: `Evaluate one rule, or the whole enabled rule list, against the fields given
with --field. Nothing is saved and no archive number is drawn.`,
		Example: `  sorter rules test --field expense_type=meal --field amount=42.50
  sorter rules test 3 --field receipt_type=TAXI`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rawFields, _ := cmd.Flags().GetStringArray("field")
			bag, err := parseFields(rawFields)
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var candidates []model.Rule
			if len(args) == 1 {
				id, err := parseRuleID(args[0])
				if err != nil {
					return err
				}
				r, err := store.GetRule(ctx, id)
				if err != nil {
					return err
				}
				r.Enabled = true
				candidates = []model.Rule{*r}
			} else {
				if candidates, err = store.GetEnabledRules(ctx); err != nil {
					return err
				}
			}

			res, err := rules.NewEngine().Classify(ctx, candidates, model.Receipt{Fields: bag})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringArrayP("field", "f", nil, "Receipt field as name=value (repeatable)")
	return cmd
}

func printResult(out io.Writer, res rules.Result) {
	if !res.Matched() {
		_, _ = fmt.Fprintln(out, cli.FormatWarning("No rule matched"))
	} else {
		_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Matched rule %d %q", res.Rule.ID, res.Rule.Name)))
		d := res.Directive
		pairs := make([]string, 0, 2*len(d.Assignments)+6)
		for _, attr := range model.AllAttributes() {
			pairs = append(pairs, string(attr), d.Assignments[attr])
		}
		pairs = append(pairs, "tags", strings.Join(d.Tags, ", "))
		if se, ok := d.SideEffect(model.SideEffectArchive); ok {
			pairs = append(pairs, "archive", se.Value)
		}
		if _, ok := d.SideEffect(model.SideEffectGenerateArchiveNumber); ok {
			number := res.ArchiveNumber
			if number == "" {
				number = "(generated on classify)"
			}
			pairs = append(pairs, "archive number", number)
		}
		_, _ = fmt.Fprintln(out, cli.FormatDetail(pairs...))
	}

	for _, d := range res.Diagnostics {
		_, _ = fmt.Fprintln(out, cli.FormatWarning(d.String()))
	}
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import rules from a YAML file",
		Long: `Import rules from a file written by "sorter rules export". Rules marked
system replace the built-in rule of the same name; all others are added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open rule file: %w", err)
			}
			defer func() { _ = f.Close() }()

			imported, err := rules.Import(f)
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			existing, err := store.ListRules(ctx)
			if err != nil {
				return err
			}
			systemByName := make(map[string]int64)
			for _, r := range existing {
				if r.IsSystemRule {
					systemByName[r.Name] = r.ID
				}
			}

			var created, updated int
			for i := range imported {
				r := imported[i]
				if id, ok := systemByName[r.Name]; ok && r.IsSystemRule {
					r.ID = id
					if err := store.UpdateRule(ctx, &r); err != nil {
						return fmt.Errorf("failed to update system rule %q: %w", r.Name, err)
					}
					updated++
					continue
				}
				r.IsSystemRule = false
				if err := store.CreateRule(ctx, &r); err != nil {
					return fmt.Errorf("failed to import rule %q: %w", r.Name, err)
				}
				created++
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Imported %d rules (%d system rules updated)", created, updated)))
			return nil
		},
	}
}

func rulesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.yaml]",
		Short: "Export every rule as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := store.ListRules(ctx)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return rules.Export(cmd.OutOrStdout(), list)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create rule file: %w", err)
			}
			if err := rules.Export(f, list); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write rule file: %w", err)
			}

			slog.Info("Exported rules", "count", len(list), "file", args[0])
			return nil
		},
	}
}
