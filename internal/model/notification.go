package model

// Notification is one outbound message, shaped like a webhook embed. The
// sink adds presentation-only attributes such as color.
type Notification struct {
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Fields    []Field    `json:"fields"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Thumbnail struct {
	URL string `json:"url"`
}
