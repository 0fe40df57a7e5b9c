package tts

import (
	"encoding/xml"
	"fmt"
)

// DefaultVoice is used when a request names no voice.
const DefaultVoice = "en-US-JennyNeural"

const (
	ssmlVersion   = "1.0"
	ssmlNamespace = "http://www.w3.org/2001/10/synthesis"
	ssmlLang      = "en-US"
	xmlNamespace  = "http://www.w3.org/XML/1998/namespace"
)

// SynthesisRequest is the voice and text of one synthesis call.
type SynthesisRequest struct {
	VoiceID string
	Text    string
}

type ssmlVoice struct {
	XMLName xml.Name `xml:"voice"`
	Name    string   `xml:"name,attr"`
	Text    string   `xml:",chardata"`
}

type ssmlSpeak struct {
	XMLName xml.Name  `xml:"speak"`
	Version string    `xml:"version,attr"`
	XMLNS   string    `xml:"xmlns,attr"`
	Lang    xml.Attr  `xml:",attr"`
	Voice   ssmlVoice `xml:"voice"`
}

// BuildSSML renders the request as a speak document. The text is escaped, so
// markup characters in a selection are spoken rather than parsed.
func BuildSSML(req SynthesisRequest) ([]byte, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = DefaultVoice
	}

	doc := ssmlSpeak{
		Version: ssmlVersion,
		XMLNS:   ssmlNamespace,
		Lang:    xml.Attr{Name: xml.Name{Space: xmlNamespace, Local: "lang"}, Value: ssmlLang},
		Voice: ssmlVoice{
			Name: voice,
			Text: req.Text,
		},
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SSML: %w", err)
	}

	return out, nil
}
