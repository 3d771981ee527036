package telephony

import "encoding/xml"

// TwiML verb nodes. Only the verbs the conversation flow emits are modeled:
// Say, Gather (with nested Say), Pause, Redirect and Hangup.

// Response is the root TwiML element returned to the transport.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather collects speech input while executing its nested verbs. When the
// window elapses with no input, the transport falls through to the verbs
// after the Gather.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Verbs         []interface{}
}

// Pause waits the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

// Redirect hands call control to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Render serializes the response document. It never fails: a marshalling
// problem degrades to an empty <Response/>, which the transport treats as
// "no further instructions".
func (r *Response) Render() string {
	out, err := xml.Marshal(r)
	if err != nil {
		return xml.Header + "<Response/>"
	}
	return xml.Header + string(out)
}
