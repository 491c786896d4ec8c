package wa

import (
	"testing"
	"time"

	"github.com/matheus3301/wprelay/internal/normalize"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

func TestTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"reaction", &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")}}, "👍"},
		{"image (no text)", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textBody(tt.msg)
			if got != tt.want {
				t.Errorf("textBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageType(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, "unknown"},
		{"text conversation", &waE2E.Message{Conversation: proto.String("hi")}, "chat"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("hi")}}, "chat"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "image"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "video"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "audio"},
		{"voice note", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{PTT: proto.Bool(true)}}, "ptt"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "document"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "sticker"},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{}}, "vcard"},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, "location"},
		{"poll", &waE2E.Message{PollCreationMessageV3: &waE2E.PollCreationMessage{}}, "poll_creation"},
		{"revoke", &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{Type: waE2E.ProtocolMessage_REVOKE.Enum()}}, "revoked"},
		{"empty message", &waE2E.Message{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := messageType(tt.msg)
			if got != tt.want {
				t.Errorf("messageType() = %q, want %q", got, tt.want)
			}
		})
	}
}

var (
	own   = types.NewJID("999", types.DefaultUserServer)
	alice = types.NewJID("111", types.DefaultUserServer)
	group = types.NewJID("120363", types.GroupServer)
)

func TestMessageShapeDirect(t *testing.T) {
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Chat: alice, Sender: alice},
		ID:            "ABC",
		PushName:      "Alice",
		Timestamp:     time.Unix(1700000000, 0),
	}
	raw := messageShape(info, &waE2E.Message{Conversation: proto.String("hello")}, own, nil)

	if got := normalize.MessageChatID(raw); got != "111@s.whatsapp.net" {
		t.Errorf("chat id = %q", got)
	}
	e := normalize.Message(raw, nil, time.UTC)
	if e.Message != "hello" || e.Type != normalize.TypeMessage {
		t.Errorf("entry = %+v", e)
	}
	if e.Sender == nil || *e.Sender != "Alice" {
		t.Errorf("sender = %v, want Alice", e.Sender)
	}
	if e.Timestamp == nil || *e.Timestamp != "2023-11-14T22:13:20.000Z" {
		t.Errorf("timestamp = %v", e.Timestamp)
	}
	if e.MessageID == nil || *e.MessageID != "false_111@s.whatsapp.net_ABC" {
		t.Errorf("message id = %v", e.MessageID)
	}
	if e.Ack != nil {
		t.Errorf("ack = %v, want nil for live messages", *e.Ack)
	}
}

func TestMessageShapeFromMe(t *testing.T) {
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Chat: alice, Sender: own, IsFromMe: true},
		ID:            "OUT",
		Timestamp:     time.Unix(1700000000, 0),
	}
	raw := messageShape(info, &waE2E.Message{Conversation: proto.String("hi")}, own, nil)

	if got := normalize.MessageChatID(raw); got != "111@s.whatsapp.net" {
		t.Errorf("chat id = %q, want the recipient", got)
	}
	e := normalize.Message(raw, nil, time.UTC)
	if !e.FromMe || e.Sender == nil || *e.Sender != normalize.SelfLabel {
		t.Errorf("entry = %+v", e)
	}
}

func TestMessageShapeGroupContext(t *testing.T) {
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Chat: group, Sender: alice, IsGroup: true},
		ID:            "G1",
		Timestamp:     time.Unix(1700000000, 0),
	}
	msg := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Caption: proto.String("look"),
		ContextInfo: &waE2E.ContextInfo{
			StanzaID:        proto.String("Q1"),
			IsForwarded:     proto.Bool(true),
			ForwardingScore: proto.Uint32(4),
		},
	}}
	raw := messageShape(info, msg, own, nil)

	if got := normalize.MessageChatID(raw); got != "120363@g.us" {
		t.Errorf("chat id = %q", got)
	}
	e := normalize.Message(raw, nil, time.UTC)
	if e.Message != "look" {
		t.Errorf("message = %q, want caption", e.Message)
	}
	if e.SenderJID == nil || *e.SenderJID != "111@s.whatsapp.net" {
		t.Errorf("sender jid = %v", e.SenderJID)
	}
	if e.QuotedMessageID == nil || *e.QuotedMessageID != "Q1" {
		t.Errorf("quoted = %v", e.QuotedMessageID)
	}
	if !e.IsForwarded || e.ForwardingScore == nil || *e.ForwardingScore != 4 {
		t.Errorf("forwarding = %v %v", e.IsForwarded, e.ForwardingScore)
	}
}

func TestMessageShapeMediaAndPoll(t *testing.T) {
	info := types.MessageInfo{MessageSource: types.MessageSource{Chat: alice, Sender: alice}, ID: "X", Timestamp: time.Unix(1, 0)}

	doc := messageShape(info, &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{Mimetype: proto.String("application/pdf")}}, own, nil)
	if got := normalize.Message(doc, nil, time.UTC).Message; got != "<document: application/pdf>" {
		t.Errorf("document = %q", got)
	}

	poll := messageShape(info, &waE2E.Message{PollCreationMessage: &waE2E.PollCreationMessage{
		Name: proto.String("Lunch?"),
		Options: []*waE2E.PollCreationMessage_Option{
			{OptionName: proto.String("Pizza")},
			{OptionName: proto.String("Sushi")},
		},
	}}, own, nil)
	e := normalize.Message(poll, nil, time.UTC)
	if !e.HasPoll || e.PollTitle == nil || *e.PollTitle != "Lunch?" || len(e.PollOptions) != 2 {
		t.Errorf("poll entry = %+v", e)
	}

	loc := messageShape(info, &waE2E.Message{LocationMessage: &waE2E.LocationMessage{Name: proto.String("Office")}}, own, nil)
	if got := normalize.Message(loc, nil, time.UTC).Message; got != "Office" {
		t.Errorf("location = %q", got)
	}
}

func TestHistoryInfo(t *testing.T) {
	web := &waWeb.WebMessageInfo{
		Key: &waCommon.MessageKey{
			RemoteJID:   proto.String(group.String()),
			FromMe:      proto.Bool(false),
			ID:          proto.String("H1"),
			Participant: proto.String("111@s.whatsapp.net"),
		},
		MessageTimestamp: proto.Uint64(1700000000),
		PushName:         proto.String("Alice"),
		Status:           waWeb.WebMessageInfo_READ.Enum(),
	}

	info := historyInfo(group, web)
	if info.ID != "H1" || !info.IsGroup || info.Sender != alice || info.PushName != "Alice" {
		t.Errorf("info = %+v", info)
	}
	if info.Timestamp.Unix() != 1700000000 {
		t.Errorf("timestamp = %v", info.Timestamp)
	}
	if ack := historyAck(web); ack == nil || *ack != 3 {
		t.Errorf("ack = %v, want 3 (read)", ack)
	}
	if historyAck(&waWeb.WebMessageInfo{}) != nil {
		t.Error("ack should be nil without a status")
	}
}

func TestChatShape(t *testing.T) {
	raw := chatShape("120363@g.us", "Team", true, 2, time.Unix(1700000000, 0), []object{
		{"id": "111@s.whatsapp.net", "name": "Alice"},
		{"id": "222@s.whatsapp.net"},
	})

	id, patch, ok := normalize.ChatMeta(raw, normalize.Participants(raw), nil)
	if !ok || id != "120363@g.us" {
		t.Fatalf("ChatMeta id = %q ok = %v", id, ok)
	}
	if patch.Name != "Team" || !patch.IsGroup || patch.UnreadCount == nil || *patch.UnreadCount != 2 {
		t.Errorf("patch = %+v", patch)
	}
	if patch.LastMessageAt == nil || *patch.LastMessageAt != "2023-11-14T22:13:20.000Z" {
		t.Errorf("lastMessageAt = %v", patch.LastMessageAt)
	}
	if len(patch.Participants) != 2 || patch.Participants[0].Label != "Alice" || patch.Participants[1].Label != "222" {
		t.Errorf("participants = %+v", patch.Participants)
	}

	unnamed := chatShape("111@s.whatsapp.net", "", false, 0, time.Time{}, nil)
	if got := normalize.ChatName(unnamed); got != "111" {
		t.Errorf("unnamed chat name = %q", got)
	}
}
