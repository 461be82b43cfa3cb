// internal/common/validation/validation.go

// Package validation checks campaign and account definitions before
// they enter the engine. Errors carry field paths so import tooling can
// point at the offending value.
package validation

import (
	"fmt"
	"time"

	"outreach-engine/internal/models"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (r *ValidationResult) add(field, message, code string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Code: code})
}

// Error summarizes the first failure for use as a Go error message.
func (r *ValidationResult) Error() string {
	if r.Valid || len(r.Errors) == 0 {
		return ""
	}
	first := r.Errors[0]
	return fmt.Sprintf("%s: %s", first.Field, first.Message)
}

// ValidateCampaign checks a campaign definition: a known type, at least
// one step, non-empty templates, non-negative gaps, and a loadable
// schedule policy.
func ValidateCampaign(c *models.Campaign) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if c.Name == "" {
		result.add("name", "campaign name is required", "required")
	}
	if c.AccountID == "" {
		result.add("accountId", "campaign must belong to an account", "required")
	}

	switch c.Type {
	case models.CampaignTypeConnector, models.CampaignTypeMessenger:
	default:
		result.add("type", fmt.Sprintf("unknown campaign type %q", c.Type), "enum")
	}

	if len(c.Steps) == 0 {
		result.add("steps", "campaign needs at least one step", "minLength")
	}
	for i, step := range c.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.Template == "" {
			result.add(field+".template", "step template is empty", "required")
		}
		if step.GapDays < 0 {
			result.add(field+".gapDays", "gap days cannot be negative", "minimum")
		}
		if i > 0 && step.GapDays == 0 {
			result.add(field+".gapDays", "follow-up steps need a positive gap", "minimum")
		}
	}

	validateSchedule(c.Schedule, result)
	return result
}

func validateSchedule(p models.SchedulePolicy, result *ValidationResult) {
	p = p.Normalized()

	if _, err := time.LoadLocation(p.Timezone); err != nil {
		result.add("schedule.timezone", fmt.Sprintf("unknown timezone %q", p.Timezone), "format")
	}
	if p.WorkStartHour < 0 || p.WorkStartHour > 23 {
		result.add("schedule.workStartHour", "hour outside 0-23", "range")
	}
	if p.WorkEndHour < 1 || p.WorkEndHour > 24 {
		result.add("schedule.workEndHour", "hour outside 1-24", "range")
	}
	if p.WorkStartHour >= p.WorkEndHour {
		result.add("schedule.workEndHour", "window closes before it opens", "range")
	}
	if p.JitterMinMinutes > p.JitterMaxMinutes {
		result.add("schedule.jitterMaxMinutes", "jitter maximum below minimum", "range")
	}
	if p.JitterMinMinutes < 0 {
		result.add("schedule.jitterMinMinutes", "jitter cannot be negative", "minimum")
	}
	if p.MaxSendsPerDay < 1 {
		result.add("schedule.maxSendsPerDay", "daily slot cap must be positive", "minimum")
	}
}

// ValidateAccount checks quota limits and timezone on an account.
func ValidateAccount(a *models.Account) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if a.ProviderAccountID == "" {
		result.add("providerAccountId", "provider account reference is required", "required")
	}
	if a.DailyLimit < 1 {
		result.add("dailyLimit", "daily limit must be positive", "minimum")
	}
	if a.WeeklyLimit < a.DailyLimit {
		result.add("weeklyLimit", "weekly limit below daily limit", "range")
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		result.add("timezone", fmt.Sprintf("unknown timezone %q", a.Timezone), "format")
	}
	if a.WeekStartDay < time.Sunday || a.WeekStartDay > time.Saturday {
		result.add("weekStartDay", "week start day outside Sunday-Saturday", "range")
	}
	return result
}
