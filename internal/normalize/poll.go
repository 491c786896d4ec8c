package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

var pollOptionSources = []string{
	"pollOptions",
	"pollUpdates.pollCreationMessageKeyData.options",
	"_data.pollCreationMessageKeyData.options",
}

var pollOptionName = []probe{
	field("name"),
	field("label"),
	field("title"),
	field("optionName.defaultText"),
	field("optionName"),
	field("optionNameMessage.text"),
	field("localizedText"),
	field("displayText"),
}

var pollTitle = []probe{
	field("pollName"),
	field("pollTitle"),
	field("pollUpdates.pollCreationMessageKeyData.name"),
	field("_data.pollCreationMessageKeyData.name"),
}

type pollInfo struct {
	has     bool
	title   *string
	options []string
}

func extractPoll(raw Raw) pollInfo {
	var options []string
	for _, src := range pollOptionSources {
		arr := raw.Get(src)
		if !arr.IsArray() {
			continue
		}
		arr.ForEach(func(_, opt gjson.Result) bool {
			if !truthy(opt) {
				return true
			}
			if opt.Type == gjson.String {
				options = append(options, strings.TrimSpace(opt.Str))
				return true
			}
			if opt.IsObject() {
				if name, ok := firstOf(Raw(opt.Raw), pollOptionName...); ok {
					options = append(options, strings.TrimSpace(name))
				}
			}
			return true
		})
	}

	info := pollInfo{options: options}
	if title, ok := firstOf(raw, pollTitle...); ok {
		info.title = &title
	}
	info.has = info.title != nil ||
		len(options) > 0 ||
		text(raw.Get("type")) == "poll_creation" ||
		truthy(raw.Get("pollUpdates"))
	return info
}
