package mediator

import (
	"context"
	"strings"

	"github.com/c360/uimediator/eventbus"
)

// Stable ids of the default policy rules installed by New. They can be
// removed or replaced like any other rule.
const (
	PolicyFormValidation = "policy:form-validation"
	PolicyModalConflict  = "policy:modal-conflict"
	PolicyServiceError   = "policy:service-error"
	PolicyDataRefresh    = "policy:data-refresh"
	PolicyWorkflowStep   = "policy:workflow-step"
)

func (m *Mediator) installDefaultPolicies() error {
	policies := []Rule{
		m.formValidationPolicy(),
		m.modalConflictPolicy(),
		m.serviceErrorPolicy(),
		m.dataRefreshPolicy(),
		m.workflowStepPolicy(),
	}
	for _, rule := range policies {
		if err := m.AddRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// formValidationPolicy turns a form submit aimed at a business component
// into a validation-required event carrying the form data.
func (m *Mediator) formValidationPolicy() Rule {
	return Rule{
		ID:           PolicyFormValidation,
		From:         Wildcard,
		To:           Wildcard,
		EventPattern: "submit",
		Condition: func(from, to string, msg Message) bool {
			return strings.Contains(from, "form") &&
				strings.Contains(to, "business") &&
				msg.Type() == "submit"
		},
		Action: func(ctx context.Context, from, to string, msg Message) error {
			return m.bus.Emit(ctx, eventbus.EventValidationRequired, map[string]any{
				"entity": msg.GetString("entityType", "unknown"),
				"data":   msg["formData"],
			})
		},
	}
}

// modalConflictPolicy forces an already-open modal closed when another modal
// addresses it with an open message, keeping at most one modal active.
func (m *Mediator) modalConflictPolicy() Rule {
	return Rule{
		ID:           PolicyModalConflict,
		From:         Wildcard,
		To:           Wildcard,
		EventPattern: "open",
		Condition: func(from, to string, msg Message) bool {
			if from == to || msg.Type() != "open" {
				return false
			}
			fromKind, ok := m.componentKind(from)
			if !ok || fromKind != KindModal {
				return false
			}
			toKind, ok := m.componentKind(to)
			return ok && toKind == KindModal
		},
		Action: func(ctx context.Context, from, to string, msg Message) error {
			return m.bus.Emit(ctx, eventbus.EventModalClosed(to), map[string]any{
				"reason": "replaced-by-other-modal",
			})
		},
	}
}

// serviceErrorPolicy surfaces service failures as a user notification and
// resets the related form when one is named. Both emissions are attempted
// even if the first fails.
func (m *Mediator) serviceErrorPolicy() Rule {
	return Rule{
		ID:           PolicyServiceError,
		From:         Wildcard,
		To:           Wildcard,
		EventPattern: "service:error",
		Condition: func(from, to string, msg Message) bool {
			return msg.Type() == "service:error"
		},
		Action: func(ctx context.Context, from, to string, msg Message) error {
			emitErr := m.bus.Emit(ctx, eventbus.EventNotification, map[string]any{
				"type":    "error",
				"message": msg.GetString("error", "service error"),
			})

			if form := msg.GetString("relatedForm", ""); form != "" {
				resetErr := m.bus.Emit(ctx, eventbus.EventFormReset(form), map[string]any{
					"reason": "service-error",
				})
				if emitErr == nil {
					emitErr = resetErr
				}
			}
			return emitErr
		},
	}
}

// dataRefreshPolicy fans a data change out to every component whose metadata
// declares a dependency on the changed entity. Each dependent is attempted;
// the first emission error is returned after the loop completes.
func (m *Mediator) dataRefreshPolicy() Rule {
	return Rule{
		ID:           PolicyDataRefresh,
		From:         Wildcard,
		To:           Wildcard,
		EventPattern: "data:changed",
		Condition: func(from, to string, msg Message) bool {
			return msg.Type() == "data:changed"
		},
		Action: func(ctx context.Context, from, to string, msg Message) error {
			entity := msg.GetString("entityType", "")
			var firstErr error
			for _, id := range m.dependentsOf(entity) {
				err := m.bus.Emit(ctx, eventbus.EventUIRefresh, map[string]any{
					"componentId": id,
					"entity":      entity,
				})
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}
}

// workflowStepPolicy forwards workflow progress messages as workflow-step
// events. Messages missing the workflow or step field are ignored.
func (m *Mediator) workflowStepPolicy() Rule {
	return Rule{
		ID:           PolicyWorkflowStep,
		From:         Wildcard,
		To:           Wildcard,
		EventPattern: "workflow:step",
		Condition: func(from, to string, msg Message) bool {
			return msg.Type() == "workflow:step" &&
				msg.Has("workflow") &&
				msg.Has("step")
		},
		Action: func(ctx context.Context, from, to string, msg Message) error {
			return m.bus.Emit(ctx, eventbus.EventWorkflowStep, map[string]any{
				"workflow": msg["workflow"],
				"step":     msg["step"],
				"data":     msg["data"],
			})
		},
	}
}
