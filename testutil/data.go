package testutil

// Message builders for the mediation flows the default policies react to.
// Each returns a fresh map so tests can mutate without cross-talk.

// SubmitMessage is a form submission carrying entity data for validation.
func SubmitMessage(entityType string, formData map[string]any) map[string]any {
	return map[string]any{
		"type":       "submit",
		"entityType": entityType,
		"formData":   formData,
	}
}

// OpenMessage asks a modal to open.
func OpenMessage() map[string]any {
	return map[string]any{"type": "open"}
}

// ServiceErrorMessage reports a failed service call, optionally naming the
// form whose state should be reset. Pass an empty relatedForm to omit it.
func ServiceErrorMessage(text, relatedForm string) map[string]any {
	msg := map[string]any{
		"type":  "service:error",
		"error": text,
	}
	if relatedForm != "" {
		msg["relatedForm"] = relatedForm
	}
	return msg
}

// DataChangedMessage reports that stored data for an entity type changed.
func DataChangedMessage(entityType string) map[string]any {
	return map[string]any{
		"type":       "data:changed",
		"entityType": entityType,
	}
}

// WorkflowMessage reports progress through a named workflow.
func WorkflowMessage(workflow, step string, data map[string]any) map[string]any {
	return map[string]any{
		"type":     "workflow:step",
		"workflow": workflow,
		"step":     step,
		"data":     data,
	}
}

// EventMessage is shaped for default forwarding: no rule matches it, so the
// mediator hands eventData straight to the target's Notify.
func EventMessage(eventName string, eventData map[string]any) map[string]any {
	return map[string]any{
		"eventName": eventName,
		"eventData": eventData,
	}
}

// RuleSetJSON is a two-definition rule file in JSON form. The first
// definition forwards large deal amounts; the second is disabled and must be
// skipped by loaders.
const RuleSetJSON = `[
  {
    "id": "big-deal-alert",
    "name": "Big deal alert",
    "from": "*",
    "to": "*",
    "enabled": true,
    "when": [
      {"field": "type", "operator": "eq", "value": "submit"},
      {"field": "formData.amount", "operator": "gte", "value": 10000}
    ],
    "emit": {
      "event": "ui:notification",
      "payload": {
        "type": "info",
        "message": "large deal from ${from}",
        "amount": "${message.formData.amount}"
      }
    }
  },
  {
    "id": "disabled-rule",
    "enabled": false,
    "emit": {"event": "ui:refresh"}
  }
]`

// RuleSetYAML mirrors RuleSetJSON in YAML form. Loading either format must
// produce the same definitions.
const RuleSetYAML = `- id: big-deal-alert
  name: Big deal alert
  from: "*"
  to: "*"
  enabled: true
  when:
    - field: type
      operator: eq
      value: submit
    - field: formData.amount
      operator: gte
      value: 10000
  emit:
    event: "ui:notification"
    payload:
      type: info
      message: "large deal from ${from}"
      amount: "${message.formData.amount}"
- id: disabled-rule
  enabled: false
  emit:
    event: "ui:refresh"
`
