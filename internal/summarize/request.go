package summarize

import "encoding/json"

// listWrapper is the fixed envelope the message items are serialized into.
type listWrapper struct {
	MessageList []Item `json:"messageList"`
}

// BuildRequest serializes the items and appends them to the instruction
// prompt. Serialization failure degrades to the prompt alone rather than
// failing the run.
func BuildRequest(items []Item) string {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(listWrapper{MessageList: items})
	if err != nil {
		return summaryPrompt
	}
	return summaryPrompt + "\n\n" + string(data)
}
