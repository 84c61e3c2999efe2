package domain

import "strings"

// ActionType tags what an actor did. The set is open: unrecognised tags are kept
// verbatim and resolve to the generic registry entry.
type ActionType string

const (
	ActionReservation ActionType = "reservation"
	ActionInquiry     ActionType = "inquiry"
	ActionDelivery    ActionType = "delivery"
	ActionShare       ActionType = "share"
)

// KnownActions lists every action type with a dedicated registry entry.
var KnownActions = []ActionType{ActionReservation, ActionInquiry, ActionDelivery, ActionShare}

// ActionStyle is the display verb and icon identifier for an action type.
type ActionStyle struct {
	Verb string
	Icon string
}

// GenericAction is returned for tags without a registry entry.
var GenericAction = ActionStyle{Verb: "checked out", Icon: "bell"}

var actionCatalog = map[ActionType]ActionStyle{
	ActionReservation: {Verb: "reserved", Icon: "calendar-check"},
	ActionInquiry:     {Verb: "asked about", Icon: "message-circle"},
	ActionDelivery:    {Verb: "took delivery of", Icon: "truck"},
	ActionShare:       {Verb: "shared", Icon: "share"},
}

// ParseActionType normalises a raw tag.
func ParseActionType(tag string) ActionType {
	return ActionType(strings.ToLower(strings.TrimSpace(tag)))
}

// Known reports whether the action type has a registry entry.
func (a ActionType) Known() bool {
	_, ok := actionCatalog[a]
	return ok
}

// LookupAction resolves the display style; it never fails.
func LookupAction(a ActionType) ActionStyle {
	if style, ok := actionCatalog[ParseActionType(string(a))]; ok {
		return style
	}
	return GenericAction
}
