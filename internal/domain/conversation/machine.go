package conversation

import (
	"time"

	"github.com/siddartha1192/bharat-crm-sub009/internal/template"
)

// Action is what the transport should do after speaking the decision text.
type Action int

const (
	// ActionSpeakAndListen speaks the text, then gathers speech for the
	// listening window.
	ActionSpeakAndListen Action = iota
	// ActionSpeakThenHangup speaks the text and ends the call.
	ActionSpeakThenHangup
)

func (a Action) String() string {
	switch a {
	case ActionSpeakAndListen:
		return "speak_and_listen"
	case ActionSpeakThenHangup:
		return "speak_then_hangup"
	default:
		return "unknown"
	}
}

// DefaultListenTimeout is the speech-gathering window handed to the transport
// on every non-terminal turn.
const DefaultListenTimeout = 8 * time.Second

// Decision is the output of one state-machine turn. NextTimeoutCount is the
// timeout count the session should carry into the following turn; it is
// meaningless when Action is ActionSpeakThenHangup.
type Decision struct {
	Action           Action
	Text             string
	NextTimeoutCount int
	ListenTimeout    time.Duration
	Voice            Voice
}

// InputKind discriminates the three things that can drive a turn.
type InputKind int

const (
	// InputGreeting opens the call; it occurs exactly once per session.
	InputGreeting InputKind = iota
	// InputSilence means no speech was captured within the listening window.
	InputSilence
	// InputResponse carries the upstream response generator's output for a
	// captured transcript.
	InputResponse
)

// Input is one state-machine stimulus.
type Input struct {
	Kind InputKind

	// ResponseText and ContinueConversation are set for InputResponse only.
	ResponseText         string
	ContinueConversation bool
}

// Progressive fallback phrases for silent callers.
const (
	promptStillThere = "Hello? Are you still there?"
	promptCallBack   = "It seems now may not be a good time. We can call you back later if you prefer."
	promptGoodbye    = "Thank you for your time. We will reach out again soon. Goodbye."
)

const defaultGreetingTemplate = "Hello {name}, this is a call from {companyName}. I am calling about {productName}. Do you have a moment to talk?"

var scriptEngine = template.NewScript()

// NextTurn decides the call's next turn from the session state and the
// incoming stimulus. It is pure: the session is not mutated, and it never
// fails. Missing script context degrades to literal defaults.
func NextTurn(s *Session, in Input) Decision {
	switch in.Kind {
	case InputGreeting:
		return speakAndListen(s, Greeting(s), s.TimeoutCount)

	case InputResponse:
		if in.ContinueConversation {
			return speakAndListen(s, in.ResponseText, s.TimeoutCount)
		}
		return speakThenHangup(s, in.ResponseText)

	default: // InputSilence
		switch {
		case s.TimeoutCount == 0:
			return speakAndListen(s, promptStillThere, 1)
		case s.TimeoutCount == 1:
			return speakAndListen(s, promptCallBack, 2)
		default:
			return speakThenHangup(s, promptGoodbye)
		}
	}
}

// Greeting renders the personalized opening line. This is the only turn that
// goes through the substitution engine; later turns speak finalized text.
func Greeting(s *Session) string {
	tmpl := s.Script.GreetingTemplate
	if tmpl == "" {
		tmpl = defaultGreetingTemplate
	}

	ctx := template.Context{
		"name":               orDefault(s.LeadName, "there"),
		"company":            orDefault(s.Script.CompanyName, "our company"),
		"companyName":        orDefault(s.Script.CompanyName, "our company"),
		"productName":        orDefault(s.Script.ProductName, "our services"),
		"productDescription": s.Script.ProductDescription,
	}
	return scriptEngine.Render(tmpl, ctx)
}

func speakAndListen(s *Session, text string, nextCount int) Decision {
	return Decision{
		Action:           ActionSpeakAndListen,
		Text:             text,
		NextTimeoutCount: nextCount,
		ListenTimeout:    DefaultListenTimeout,
		Voice:            s.Voice,
	}
}

func speakThenHangup(s *Session, text string) Decision {
	return Decision{
		Action: ActionSpeakThenHangup,
		Text:   text,
		Voice:  s.Voice,
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
