package conversation

import (
	domain "github.com/siddartha1192/bharat-crm-sub009/internal/domain/conversation"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telephony"
)

// DecisionToTwiML converts one state-machine decision into the transport
// instruction document. Listening turns nest the spoken text inside a
// speech Gather and chain a Redirect back to turnURL so an elapsed window
// comes back as a silence turn.
func DecisionToTwiML(d domain.Decision, turnURL, silenceURL string) *telephony.Response {
	say := telephony.Say{
		Voice:    d.Voice.Name,
		Language: d.Voice.Language,
		Text:     d.Text,
	}

	if d.Action == domain.ActionSpeakThenHangup {
		// a short pause keeps teardown from clipping the goodbye
		return &telephony.Response{
			Verbs: []interface{}{say, telephony.Pause{Length: 1}, telephony.Hangup{}},
		}
	}

	gather := telephony.Gather{
		Input:         "speech",
		Action:        turnURL,
		Method:        "POST",
		Timeout:       int(d.ListenTimeout.Seconds()),
		SpeechTimeout: "auto",
		Language:      d.Voice.Language,
		Verbs:         []interface{}{say},
	}

	return &telephony.Response{
		Verbs: []interface{}{
			gather,
			telephony.Redirect{Method: "POST", URL: silenceURL},
		},
	}
}
