package conversation

import (
	"context"
	"strings"

	domain "github.com/siddartha1192/bharat-crm-sub009/internal/domain/conversation"
	"github.com/siddartha1192/bharat-crm-sub009/internal/template"
)

// ScriptedResponder is a keyword-driven ResponseGenerator used when no
// upstream generator is wired. It recognizes interest, refusal and
// busy signals; anything else gets the product pitch once, then a wrap-up.
type ScriptedResponder struct {
	engine *template.Engine
}

func NewScriptedResponder() *ScriptedResponder {
	return &ScriptedResponder{engine: template.NewScript()}
}

const pitchTemplate = "Great. {productName} - {productDescription}. Would you like someone from our team to follow up with the details?"

func (r *ScriptedResponder) Respond(_ context.Context, session *domain.Session, transcript string) (string, bool, error) {
	lower := strings.ToLower(transcript)

	switch {
	case containsAny(lower, "not interested", "no thanks", "no thank you", "stop calling", "remove me"):
		return "Understood, I will not take more of your time. Thank you, and have a good day.", false, nil

	case containsAny(lower, "busy", "bad time", "later", "call back", "call me back"):
		return "No problem. We will call you back at a better time. Goodbye.", false, nil

	case containsAny(lower, "yes", "sure", "okay", "go ahead", "tell me more", "interested"):
		ctx := template.Context{
			"productName":        orDefault(session.Script.ProductName, "our product"),
			"productDescription": orDefault(session.Script.ProductDescription, "it helps teams manage their customers better"),
		}
		return r.engine.Render(pitchTemplate, ctx), true, nil

	default:
		return "Thank you. A member of our team will reach out with more information. Goodbye.", false, nil
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
