package task

import "time"

// UpdateRequest enumerates the mutable fields of a task. Nil pointers mean
// "leave unchanged". The whole request is validated against the task before
// any field is applied, so a rejected update leaves the task untouched.
type UpdateRequest struct {
	Name              *string           `json:"name,omitempty"`
	Description       *string           `json:"description,omitempty"`
	CronExpression    *string           `json:"cron_expression,omitempty"`
	Timezone          *string           `json:"timezone,omitempty"`
	Prompt            *string           `json:"prompt,omitempty"`
	SaveResult        *bool             `json:"save_result,omitempty"`
	NotificationMode  *NotificationMode `json:"notification_mode,omitempty"`
	NotificationEmail *string           `json:"notification_email,omitempty"`
	Attachments       []string          `json:"attachments,omitempty"`
}

// TouchesSchedule reports whether applying the request changes how
// occurrence times are computed, which forces a NextRunAt recomputation.
func (r UpdateRequest) TouchesSchedule() bool {
	return r.CronExpression != nil || r.Timezone != nil
}

// Apply validates the request against t and then applies it in one step.
// On error, t is unmodified. Recomputing NextRunAt after a schedule change
// is the caller's responsibility (the service does it with the same clock
// it uses everywhere else).
func (t *Task) Apply(r UpdateRequest) error {
	next := *t
	next.Config.Attachments = append([]string(nil), t.Config.Attachments...)

	if r.Name != nil {
		next.Name = *r.Name
	}
	if r.Description != nil {
		next.Description = *r.Description
	}
	if r.CronExpression != nil {
		next.CronExpression = *r.CronExpression
	}
	if r.Timezone != nil {
		next.Timezone = *r.Timezone
	}
	if r.Prompt != nil {
		next.Config.Prompt = *r.Prompt
	}
	if r.SaveResult != nil {
		next.Config.SaveResult = *r.SaveResult
	}
	if r.NotificationMode != nil {
		next.Config.NotificationMode = *r.NotificationMode
	}
	if r.NotificationEmail != nil {
		next.Config.NotificationEmail = *r.NotificationEmail
	}
	if r.Attachments != nil {
		next.Config.Attachments = r.Attachments
	}

	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = time.Now().UTC()
	*t = next
	return nil
}
