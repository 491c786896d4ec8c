package wa

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/normalize"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
)

// object is a raw JSON shape under construction.
type object map[string]any

func encode(v object) normalize.Raw {
	data, err := json.Marshal(v)
	if err != nil {
		return normalize.Raw("{}")
	}
	return normalize.Raw(data)
}

// messageShape renders a message as the raw shape the normalizer reads.
// own is the linked account and may be empty. ack is nil when unknown.
func messageShape(info types.MessageInfo, msg *waE2E.Message, own types.JID, ack *int) normalize.Raw {
	chat := info.Chat.ToNonAD().String()
	self := ""
	if !own.IsEmpty() {
		self = own.ToNonAD().String()
	}

	id := object{
		"_serialized": fmt.Sprintf("%t_%s_%s", info.IsFromMe, chat, info.ID),
		"id":          info.ID,
		"remote":      chat,
		"fromMe":      info.IsFromMe,
	}
	shape := object{
		"id":        id,
		"fromMe":    info.IsFromMe,
		"timestamp": info.Timestamp.Unix(),
		"type":      messageType(msg),
	}
	if info.IsFromMe {
		shape["from"], shape["to"] = self, chat
	} else {
		shape["from"], shape["to"] = chat, self
	}
	if info.IsGroup && !info.Sender.IsEmpty() {
		sender := info.Sender.ToNonAD().String()
		id["participant"] = sender
		if !info.IsFromMe {
			shape["author"] = sender
		}
	}

	data := object{}
	if info.PushName != "" && !info.IsFromMe {
		data["notifyName"] = info.PushName
	}

	if body := textBody(msg); body != "" {
		shape["body"] = body
	}
	if caption := caption(msg); caption != "" {
		shape["caption"] = caption
	}
	if doc := msg.GetDocumentMessage(); doc != nil && doc.GetMimetype() != "" {
		data["mimetype"] = doc.GetMimetype()
	}
	if loc := msg.GetLocationMessage(); loc != nil {
		shape["location"] = object{"latitude": loc.GetDegreesLatitude(), "longitude": loc.GetDegreesLongitude()}
		if desc := strings.TrimSpace(strings.Join([]string{loc.GetName(), loc.GetAddress()}, "\n")); desc != "" {
			shape["description"] = desc
		}
	}
	if poll := pollMessage(msg); poll != nil {
		options := make([]object, 0, len(poll.GetOptions()))
		for _, opt := range poll.GetOptions() {
			options = append(options, object{"name": opt.GetOptionName()})
		}
		shape["pollName"] = poll.GetName()
		shape["pollOptions"] = options
	}
	if ci := contextInfo(msg); ci != nil {
		if q := ci.GetStanzaID(); q != "" {
			shape["quotedMsgId"] = q
		}
		if ci.GetIsForwarded() {
			shape["isForwarded"] = true
			shape["forwardingScore"] = ci.GetForwardingScore()
		}
	}
	if ack != nil {
		shape["ack"] = *ack
	}
	if len(data) > 0 {
		shape["_data"] = data
	}
	return encode(shape)
}

// historyInfo rebuilds message info from a history sync record.
func historyInfo(chat types.JID, web *waWeb.WebMessageInfo) types.MessageInfo {
	key := web.GetKey()
	info := types.MessageInfo{
		MessageSource: types.MessageSource{
			Chat:     chat,
			Sender:   chat,
			IsFromMe: key.GetFromMe(),
			IsGroup:  chat.Server == types.GroupServer,
		},
		ID:        key.GetID(),
		PushName:  web.GetPushName(),
		Timestamp: time.Unix(int64(web.GetMessageTimestamp()), 0),
	}
	participant := key.GetParticipant()
	if participant == "" {
		participant = web.GetParticipant()
	}
	if participant != "" {
		if jid, err := types.ParseJID(participant); err == nil {
			info.Sender = jid
		}
	}
	return info
}

// historyAck maps a stored delivery status onto the web ack scale, which
// starts at -1 for errors.
func historyAck(web *waWeb.WebMessageInfo) *int {
	if web.Status == nil {
		return nil
	}
	ack := int(web.GetStatus()) - 1
	return &ack
}

func textBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if r := msg.GetReactionMessage(); r != nil {
		return r.GetText()
	}
	return ""
}

func caption(msg *waE2E.Message) string {
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func pollMessage(msg *waE2E.Message) *waE2E.PollCreationMessage {
	for _, p := range []*waE2E.PollCreationMessage{
		msg.GetPollCreationMessage(),
		msg.GetPollCreationMessageV2(),
		msg.GetPollCreationMessageV3(),
	} {
		if p != nil {
			return p
		}
	}
	return nil
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage().GetContextInfo()
	case msg.GetLocationMessage() != nil:
		return msg.GetLocationMessage().GetContextInfo()
	}
	return nil
}

// messageType names a message the way the web client does.
func messageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "chat"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return "ptt"
		}
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "vcard"
	case msg.GetContactsArrayMessage() != nil:
		return "multi_vcard"
	case msg.GetLocationMessage() != nil, msg.GetLiveLocationMessage() != nil:
		return "location"
	case pollMessage(msg) != nil:
		return "poll_creation"
	case msg.GetReactionMessage() != nil:
		return "reaction"
	case msg.GetProtocolMessage() != nil && msg.GetProtocolMessage().GetType() == waE2E.ProtocolMessage_REVOKE:
		return "revoked"
	default:
		return "unknown"
	}
}

// chatShape renders a chat as the raw shape the resolver reads.
func chatShape(id, name string, isGroup bool, unread int, last time.Time, participants []object) normalize.Raw {
	shape := object{
		"id":          id,
		"isGroup":     isGroup,
		"unreadCount": unread,
	}
	if name != "" {
		shape["name"] = name
	}
	if !last.IsZero() {
		shape["timestamp"] = last.Unix()
	}
	if participants != nil {
		shape["participants"] = participants
	}
	return encode(shape)
}
