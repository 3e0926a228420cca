package api

import (
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RuleDTO is the JSON form of a rule.
type RuleDTO struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Conditions   []model.Condition `json:"conditions"`
	Actions      []model.Action    `json:"actions"`
	ID           int64             `json:"id"`
	Sequence     int64             `json:"sequence"`
	Priority     int               `json:"priority"`
	Enabled      bool              `json:"enabled"`
	IsSystemRule bool              `json:"is_system_rule"`
}

// PreviewRequest carries the raw receipt fields to classify.
type PreviewRequest struct {
	Fields model.FieldBag `json:"fields"`
}

// PreviewResponse describes what classification would do.
type PreviewResponse struct {
	Rule        *RuleDTO           `json:"rule,omitempty"`
	Directive   model.Directive    `json:"directive"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
	Matched     bool               `json:"matched"`
}

func toRuleDTO(r model.Rule) RuleDTO {
	return RuleDTO{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Conditions:   r.Conditions,
		Actions:      r.Actions,
		Sequence:     r.Sequence,
		Priority:     r.Priority,
		Enabled:      r.Enabled,
		IsSystemRule: r.IsSystemRule,
	}
}

func toPreviewResponse(res rules.Result) PreviewResponse {
	resp := PreviewResponse{
		Directive:   res.Directive,
		Diagnostics: res.Diagnostics,
		Matched:     res.Matched(),
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []model.Diagnostic{}
	}
	if res.Rule != nil {
		dto := toRuleDTO(*res.Rule)
		resp.Rule = &dto
	}
	return resp
}
