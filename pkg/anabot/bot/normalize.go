// Package bot implements the inbound-event processing pipeline: webhook
// payloads are normalized, deduplicated, serialized per contact, routed
// through the responder and dispatched back, with CRM bookkeeping on the
// side.
package bot

import (
	"encoding/json"
	"strings"
)

// IgnoreReason explains why an inbound event produced no reply. These are
// expected conditions, not errors.
type IgnoreReason string

const (
	ReasonInvalidJSON        IgnoreReason = "invalid_json"
	ReasonOwnMessage         IgnoreReason = "own_message"
	ReasonNoPhoneOrText      IgnoreReason = "no_phone_or_text"
	ReasonEchoRecentOutbound IgnoreReason = "echo_recent_outbound"
	ReasonDuplicate          IgnoreReason = "duplicate"
)

// Inbound is the canonical form of a provider webhook event.
type Inbound struct {
	Phone    string
	Text     string
	PushName string
	FromMe   bool
}

// messageContent mirrors the provider message-type keys. Text may live
// under the plain conversation field, extended text, or a media caption,
// optionally wrapped one level deep in an ephemeral envelope.
type messageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage *struct {
		Caption string `json:"caption"`
	} `json:"imageMessage"`
	DocumentMessage *struct {
		Caption string `json:"caption"`
	} `json:"documentMessage"`
	VideoMessage *struct {
		Caption string `json:"caption"`
	} `json:"videoMessage"`
	EphemeralMessage *struct {
		Message *messageContent `json:"message"`
	} `json:"ephemeralMessage"`
}

// rawMessage is one provider message object.
type rawMessage struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	PushName string          `json:"pushName"`
	Phone    string          `json:"phone"`
	Message  *messageContent `json:"message"`
}

// webhookBody covers both payload shapes: the message nested in a
// messages[0] list, or the message fields at the top level.
type webhookBody struct {
	Messages []rawMessage `json:"messages"`
	rawMessage
}

// Normalizer extracts a canonical (phone, text, fromMe) triple from
// provider-specific webhook payload shapes.
type Normalizer struct {
	// SuppressSelfEcho rejects events flagged fromMe as own_message.
	SuppressSelfEcho bool
}

// Normalize parses a raw webhook body. A non-empty IgnoreReason means the
// body is not a processable message; this is not an error.
func (n *Normalizer) Normalize(body []byte) (Inbound, IgnoreReason) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return Inbound{}, ReasonInvalidJSON
	}

	msg := wb.rawMessage
	if len(wb.Messages) > 0 {
		msg = wb.Messages[0]
	}

	ev := Inbound{
		Phone:    extractPhone(msg),
		Text:     strings.TrimSpace(extractText(msg.Message)),
		PushName: msg.PushName,
		FromMe:   msg.Key.FromMe,
	}

	if n.SuppressSelfEcho && ev.FromMe {
		return ev, ReasonOwnMessage
	}
	if ev.Phone == "" || ev.Text == "" {
		return ev, ReasonNoPhoneOrText
	}
	return ev, ""
}

// extractPhone derives the contact phone from the remote JID (everything
// before "@", digits only), falling back to an explicit phone field.
func extractPhone(msg rawMessage) string {
	jid := msg.Key.RemoteJID
	if i := strings.Index(jid, "@"); i >= 0 {
		jid = jid[:i]
	}
	if digits := digitsOnly(jid); digits != "" {
		return digits
	}
	return digitsOnly(msg.Phone)
}

// extractText tries the provider text locations in order, unwrapping one
// level of ephemeral envelope first.
func extractText(mc *messageContent) string {
	if mc == nil {
		return ""
	}
	if mc.EphemeralMessage != nil && mc.EphemeralMessage.Message != nil {
		mc = mc.EphemeralMessage.Message
	}
	switch {
	case mc.Conversation != "":
		return mc.Conversation
	case mc.ExtendedTextMessage != nil && mc.ExtendedTextMessage.Text != "":
		return mc.ExtendedTextMessage.Text
	case mc.ImageMessage != nil && mc.ImageMessage.Caption != "":
		return mc.ImageMessage.Caption
	case mc.DocumentMessage != nil && mc.DocumentMessage.Caption != "":
		return mc.DocumentMessage.Caption
	case mc.VideoMessage != nil && mc.VideoMessage.Caption != "":
		return mc.VideoMessage.Caption
	}
	return ""
}

// digitsOnly strips every non-digit rune.
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
