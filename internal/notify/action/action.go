// Package action defines the descriptors carried by notification buttons. Each
// action kind is a distinct Go type; Parse is the only way back from the wire
// form and rejects anything it does not recognise.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind tags the action on the wire.
type Kind string

const (
	KindProvisionEmail Kind = "provision_email"
	KindProvisionRide  Kind = "provision_ride"
	KindAssignEmail    Kind = "assign_email"
	KindBatchEmail     Kind = "batch_email"
	KindBatchRide      Kind = "batch_ride"
	KindRefresh        Kind = "refresh"
)

var (
	// ErrMalformed is returned when the payload is not a decodable descriptor.
	ErrMalformed = errors.New("malformed action payload")
	// ErrUnknownKind is returned when the descriptor names no known action.
	ErrUnknownKind = errors.New("unknown action kind")
)

// Action is implemented by every descriptor type. The unexported method closes
// the set to this package.
type Action interface {
	Kind() Kind
	isAction()
}

// EmailTarget is the minimal data needed to create a work email.
type EmailTarget struct {
	RecordID string `json:"record_id"`
	Name     string `json:"name"`
}

// RideTarget is the minimal data needed to open a ride-service account.
type RideTarget struct {
	RecordID string `json:"record_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	RuleID   string `json:"rule_id"`
	Location string `json:"location,omitempty"`
}

type ProvisionEmail struct {
	EmailTarget
}

type ProvisionRide struct {
	RideTarget
}

// AssignEmail commits an operator-chosen handle without suffix search.
type AssignEmail struct {
	EmailTarget
	Handle string `json:"handle"`
}

type BatchEmail struct {
	Items []EmailTarget `json:"items"`
}

type BatchRide struct {
	Items []RideTarget `json:"items"`
}

// Refresh re-polls the roster and re-sends the card it was pressed on.
type Refresh struct {
	Group string `json:"group,omitempty"`
}

func (ProvisionEmail) Kind() Kind { return KindProvisionEmail }
func (ProvisionRide) Kind() Kind  { return KindProvisionRide }
func (AssignEmail) Kind() Kind    { return KindAssignEmail }
func (BatchEmail) Kind() Kind     { return KindBatchEmail }
func (BatchRide) Kind() Kind      { return KindBatchRide }
func (Refresh) Kind() Kind        { return KindRefresh }

func (ProvisionEmail) isAction() {}
func (ProvisionRide) isAction()  {}
func (AssignEmail) isAction()    {}
func (BatchEmail) isAction()     {}
func (BatchRide) isAction()      {}
func (Refresh) isAction()        {}

// envelope is the wire form: {"kind": "...", "data": {...}}.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serialises a descriptor into its wire form.
func Encode(a Action) (json.RawMessage, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", a.Kind(), err)
	}
	return json.Marshal(envelope{Kind: a.Kind(), Data: data})
}

// MustEncode is Encode for descriptors built from plain strings, which cannot fail.
func MustEncode(a Action) json.RawMessage {
	raw, err := Encode(a)
	if err != nil {
		panic(err)
	}
	return raw
}

// Parse decodes a wire payload into its descriptor type.
func Parse(raw []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Kind {
	case KindProvisionEmail:
		var a ProvisionEmail
		if err := decode(env.Data, &a); err != nil {
			return nil, err
		}
		if err := requireFields(a.RecordID, a.Name); err != nil {
			return nil, err
		}
		return a, nil
	case KindProvisionRide:
		var a ProvisionRide
		if err := decode(env.Data, &a); err != nil {
			return nil, err
		}
		if err := requireFields(a.RecordID, a.Name, a.Phone, a.RuleID); err != nil {
			return nil, err
		}
		return a, nil
	case KindAssignEmail:
		var a AssignEmail
		if err := decode(env.Data, &a); err != nil {
			return nil, err
		}
		if err := requireFields(a.RecordID, a.Handle); err != nil {
			return nil, err
		}
		return a, nil
	case KindBatchEmail:
		var a BatchEmail
		if err := decode(env.Data, &a); err != nil {
			return nil, err
		}
		if len(a.Items) == 0 {
			return nil, fmt.Errorf("%w: empty batch", ErrMalformed)
		}
		return a, nil
	case KindBatchRide:
		var a BatchRide
		if err := decode(env.Data, &a); err != nil {
			return nil, err
		}
		if len(a.Items) == 0 {
			return nil, fmt.Errorf("%w: empty batch", ErrMalformed)
		}
		return a, nil
	case KindRefresh:
		var a Refresh
		if len(env.Data) > 0 {
			if err := decode(env.Data, &a); err != nil {
				return nil, err
			}
		}
		return a, nil
	case "":
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Kind)
	}
}

func decode(data json.RawMessage, into any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func requireFields(values ...string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: missing required field", ErrMalformed)
		}
	}
	return nil
}
