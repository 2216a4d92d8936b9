package domain

import "strings"

// InboundMessage is one provider webhook payload normalized into named
// fields. Missing fields stay empty rather than failing the request.
type InboundMessage struct {
	From             string
	ProfileName      string
	Body             string
	NumMedia         int
	MediaURL         string
	MediaContentType string
}

func (m InboundMessage) HasMedia() bool {
	return m.NumMedia > 0 && m.MediaURL != ""
}

func (m InboundMessage) IsVoice() bool {
	return m.HasMedia() && strings.HasPrefix(m.MediaContentType, "audio/")
}

func (m InboundMessage) IsImage() bool {
	return m.HasMedia() && strings.HasPrefix(m.MediaContentType, "image/")
}
