package relay

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Inbound event names.
const (
	EventJoin            = "join-event"
	EventOpenQuestion    = "open-question"
	EventCloseQuestion   = "close-question"
	EventDeleteQuestion  = "delete-question"
	EventNewAnswer       = "new-answer"
	EventDisplayQuestion = "display-question"
	EventHideResults     = "hide-results"
	EventPickAnswer      = "pick-answer"
	EventHideAnswer      = "hide-answer"
)

// Outbound event names that differ from the inbound name.
const (
	EventUpdateResults = "update-results"
	EventAnswerPicked  = "answer-picked"
	EventAnswerHidden  = "answer-hidden"
)

// fields is an inbound object payload with its values left undecoded.
type fields map[string]json.RawMessage

type route struct {
	// roomKey names the payload field that addresses the room.
	roomKey string
	// nonZero also drops a room id given as the number 0.
	nonZero bool
	// emit is the outgoing event name.
	emit string
	// payload builds the outgoing argument from the raw inbound argument.
	payload func(raw json.RawMessage, f fields) any
}

type questionRef struct {
	QuestionID json.RawMessage `json:"questionId,omitempty"`
}

type displayedQuestion struct {
	QuestionID json.RawMessage `json:"questionId,omitempty"`
	EventID    json.RawMessage `json:"eventId,omitempty"`
}

type eventRef struct {
	EventID json.RawMessage `json:"eventId,omitempty"`
}

type answerPick struct {
	QuestionID json.RawMessage `json:"questionId,omitempty"`
	AnswerID   json.RawMessage `json:"answerId,omitempty"`
	IsPicked   json.RawMessage `json:"isPicked,omitempty"`
}

type answerHide struct {
	QuestionID json.RawMessage `json:"questionId,omitempty"`
	AnswerID   json.RawMessage `json:"answerId,omitempty"`
	IsHidden   json.RawMessage `json:"isHidden,omitempty"`
}

var routes = map[string]route{
	EventOpenQuestion: {
		roomKey: "event_id",
		nonZero: true,
		emit:    EventOpenQuestion,
		payload: func(raw json.RawMessage, _ fields) any { return raw },
	},
	EventCloseQuestion: {
		roomKey: "eventId",
		emit:    EventCloseQuestion,
		payload: func(_ json.RawMessage, f fields) any { return f["questionId"] },
	},
	EventDeleteQuestion: {
		roomKey: "eventId",
		emit:    EventDeleteQuestion,
		payload: func(_ json.RawMessage, f fields) any { return f["questionId"] },
	},
	EventNewAnswer: {
		roomKey: "eventId",
		emit:    EventUpdateResults,
		payload: func(_ json.RawMessage, f fields) any {
			return questionRef{QuestionID: f["questionId"]}
		},
	},
	EventDisplayQuestion: {
		roomKey: "eventId",
		emit:    EventDisplayQuestion,
		payload: func(_ json.RawMessage, f fields) any {
			return displayedQuestion{QuestionID: f["questionId"], EventID: f["eventId"]}
		},
	},
	EventHideResults: {
		roomKey: "eventId",
		emit:    EventHideResults,
		payload: func(_ json.RawMessage, f fields) any {
			return eventRef{EventID: f["eventId"]}
		},
	},
	EventPickAnswer: {
		roomKey: "eventId",
		emit:    EventAnswerPicked,
		payload: func(_ json.RawMessage, f fields) any {
			return answerPick{QuestionID: f["questionId"], AnswerID: f["answerId"], IsPicked: f["isPicked"]}
		},
	},
	EventHideAnswer: {
		roomKey: "eventId",
		emit:    EventAnswerHidden,
		payload: func(_ json.RawMessage, f fields) any {
			return answerHide{QuestionID: f["questionId"], AnswerID: f["answerId"], IsHidden: f["isHidden"]}
		},
	},
}

// Known reports whether event is part of the relay vocabulary.
func Known(event string) bool {
	if event == EventJoin {
		return true
	}
	_, ok := routes[event]
	return ok
}

// plan resolves an inbound message to its room, outgoing name and outgoing
// argument. ok is false when no room can be resolved.
func plan(event string, args []json.RawMessage) (room, emit string, payload any, ok bool) {
	rt, known := routes[event]
	if !known {
		return "", "", nil, false
	}

	var raw json.RawMessage
	if len(args) > 0 {
		raw = args[0]
	}

	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", "", nil, false
	}

	room, ok = roomID(f[rt.roomKey])
	if !ok || (rt.nonZero && isZero(f[rt.roomKey])) {
		return "", "", nil, false
	}

	return room, rt.emit, rt.payload(raw, f), true
}

// roomID coerces a raw JSON id to a room name. Strings are used verbatim and
// numbers in their shortest decimal form, so 42 and 42.0 name the same room.
// Anything else, including the empty string, resolves no room.
func roomID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true

	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}

	return "", false
}

// isZero reports whether raw is the JSON number 0. The string "0" is not.
func isZero(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	return err == nil && f == 0
}
