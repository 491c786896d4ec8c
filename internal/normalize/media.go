package normalize

var mediaPlaceholders = map[string]string{
	"image":      "<image omitted>",
	"video":      "<video omitted>",
	"audio":      "<audio omitted>",
	"ptt":        "<voice note>",
	"sticker":    "<sticker>",
	"ciphertext": "<encrypted message>",
	"revoked":    "<message deleted>",
}

// describeMedia returns the placeholder text for a message without text.
func describeMedia(raw Raw) string {
	typ := text(raw.Get("type"))
	if typ == "" || typ == "chat" {
		return ""
	}
	if p, ok := mediaPlaceholders[typ]; ok {
		return p
	}
	if typ == "document" {
		mime, ok := firstOf(raw, field("_data.mimetype"))
		if !ok {
			mime = "file"
		}
		return "<document: " + mime + ">"
	}
	return "<" + typ + ">"
}
