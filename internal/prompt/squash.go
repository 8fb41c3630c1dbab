package prompt

import "strings"

// SquashSystemMessages merges every maximal run of consecutive system
// messages into one, joining content with a newline. The merged message
// keeps the position of the first message in its run; non-system messages
// keep their relative order. A lone system message is returned unchanged.
func SquashSystemMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}

	out := make([]Message, 0, len(messages))
	var run []string
	flush := func() {
		if len(run) == 0 {
			return
		}
		out = append(out, Message{Role: RoleSystem, Content: strings.Join(run, "\n")})
		run = nil
	}

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			run = append(run, msg.Content)
			continue
		}
		flush()
		out = append(out, msg)
	}
	flush()
	return out
}
