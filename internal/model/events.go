package model

import "strconv"

const (
	StreamPayEvents           = "payEvents"
	StreamProjectCreateEvents = "projectCreateEvents"
)

// Project is the project reference carried by every event.
type Project struct {
	Handle      string `json:"handle"`
	MetadataURI string `json:"metadataUri"`
}

// EventHeader holds the fields shared by both event streams.
type EventHeader struct {
	ID        string  `json:"id"`
	Project   Project `json:"project"`
	ProjectID FlexInt `json:"projectId"`
	TxHash    string  `json:"txHash"`
	PV        string  `json:"pv"`
	Timestamp FlexInt `json:"timestamp"`
}

// Event is a single upstream record from either stream.
type Event interface {
	Header() EventHeader
	// Subject is the address whose identity is shown in the notification.
	Subject() string
}

// PayEvent is a payment made to a project.
type PayEvent struct {
	EventHeader
	Amount      FlexString `json:"amount"`
	Beneficiary string     `json:"beneficiary"`
}

func (e PayEvent) Header() EventHeader { return e.EventHeader }
func (e PayEvent) Subject() string     { return e.Beneficiary }

// ProjectCreateEvent is the creation of a new project.
type ProjectCreateEvent struct {
	EventHeader
	From string `json:"from"`
}

func (e ProjectCreateEvent) Header() EventHeader { return e.EventHeader }
func (e ProjectCreateEvent) Subject() string     { return e.From }

// EventKey identifies an event for logs and the error record.
func EventKey(e Event) string {
	h := e.Header()
	return h.TxHash + "@" + strconv.FormatInt(int64(h.Timestamp), 10)
}
