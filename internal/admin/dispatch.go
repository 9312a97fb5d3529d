// Package admin maps the action-dispatched admin endpoints onto the domain
// services. Each resource owns a closed set of typed requests; anything
// outside that set is rejected before a service is touched.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// Actor is the authenticated admin performing the action.
type Actor struct {
	UserID uuid.UUID
	Email  string
}

// Handler executes one decoded action.
type Handler func(ctx context.Context, actor Actor, payload json.RawMessage) (any, error)

// Resource dispatches the actions of one admin resource.
type Resource struct {
	name     string
	handlers map[string]Handler
}

func newResource(name string, handlers map[string]Handler) *Resource {
	return &Resource{name: name, handlers: handlers}
}

func (r *Resource) Name() string {
	return r.name
}

// Actions lists the supported action names, sorted.
func (r *Resource) Actions() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch decodes the envelope and runs the matching handler.
func (r *Resource) Dispatch(ctx context.Context, actor Actor, body []byte) (any, error) {
	action, payload, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	handler, ok := r.handlers[action]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ação inválida").WithDetails(map[string]any{
			"action":    action,
			"supported": r.Actions(),
		})
	}
	return handler(ctx, actor, payload)
}

type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// decodeEnvelope accepts both {"action": "x", "id": ...} and
// {"action": "x", "data": {"id": ...}}.
func decodeEnvelope(body []byte) (string, json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "corpo da requisição vazio")
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "JSON inválido")
	}
	action := strings.TrimSpace(env.Action)
	if action == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "ação é obrigatória")
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && data[0] == '{' {
		return action, json.RawMessage(data), nil
	}
	return action, json.RawMessage(body), nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decode unmarshals the payload into dest and runs its validate tags.
func decode(payload json.RawMessage, dest any) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "dados inválidos")
		}
	}
	if err := validate.Struct(dest); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			details := map[string]string{}
			for _, fe := range errs {
				details[fe.Field()] = fe.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "dados inválidos").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "dados inválidos")
	}
	return nil
}

// typed adapts a handler over a concrete request type.
func typed[T any](fn func(ctx context.Context, actor Actor, req T) (any, error)) Handler {
	return func(ctx context.Context, actor Actor, payload json.RawMessage) (any, error) {
		var req T
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return fn(ctx, actor, req)
	}
}

func record(ctx context.Context, recorder audit.Recorder, actor Actor, action, entity, entityID string, meta map[string]any) {
	if recorder == nil {
		return
	}
	recorder.Record(ctx, audit.Entry{
		UserID:   actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}
