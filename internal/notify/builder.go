// Package notify turns enriched events into notifications.
package notify

import (
	"fmt"
	"strings"

	"juiceWatch/internal/ipfs"
	"juiceWatch/internal/model"
)

// maxFieldValue is the longest field value webhook embeds accept.
const maxFieldValue = 1024

// Links are the base URLs notifications point at.
type Links struct {
	AppURL      string
	ExplorerURL string
	IPFSGateway string
}

// Builder formats notifications for both streams.
type Builder struct {
	links Links
}

func NewBuilder(links Links) *Builder {
	links.AppURL = strings.TrimRight(links.AppURL, "/")
	links.ExplorerURL = strings.TrimRight(links.ExplorerURL, "/")
	return &Builder{links: links}
}

// Build returns the notification for ev.
func (b *Builder) Build(ev model.EnrichedEvent) (model.Notification, error) {
	switch e := ev.Event.(type) {
	case model.PayEvent:
		return b.payment(e, ev), nil
	case model.ProjectCreateEvent:
		return b.projectCreate(e, ev), nil
	default:
		return model.Notification{}, fmt.Errorf("unsupported event type %T", ev.Event)
	}
}

func (b *Builder) payment(e model.PayEvent, ev model.EnrichedEvent) model.Notification {
	amount, ok := FormatEther(string(e.Amount))
	if ok {
		amount += " ETH"
	} else {
		amount = string(e.Amount) + " wei"
	}

	return model.Notification{
		Title: "Payment to " + ProjectLabel(e.EventHeader, ev.Metadata),
		URL:   b.ProjectURL(e.EventHeader),
		Fields: []model.Field{
			{Name: "Amount", Value: amount, Inline: true},
			{Name: "Beneficiary", Value: b.accountLink(ev.Identity, e.Beneficiary), Inline: true},
			{Name: "Transaction", Value: b.txLink(e.TxHash), Inline: true},
		},
		Thumbnail: b.thumbnail(ev.Metadata),
	}
}

func (b *Builder) projectCreate(e model.ProjectCreateEvent, ev model.EnrichedEvent) model.Notification {
	fields := []model.Field{
		{Name: "Creator", Value: b.accountLink(ev.Identity, e.From), Inline: true},
		{Name: "Transaction", Value: b.txLink(e.TxHash), Inline: true},
	}
	if desc := strings.TrimSpace(ev.Metadata.Description); desc != "" {
		fields = append(fields, model.Field{Name: "Description", Value: truncateRunes(desc, maxFieldValue), Inline: false})
	}

	return model.Notification{
		Title:     "New Project: " + ProjectLabel(e.EventHeader, ev.Metadata),
		URL:       b.ProjectURL(e.EventHeader),
		Fields:    fields,
		Thumbnail: b.thumbnail(ev.Metadata),
	}
}

// ProjectURL links v2 projects by id and v1 projects by handle.
func (b *Builder) ProjectURL(h model.EventHeader) string {
	if h.PV == "2" {
		return fmt.Sprintf("%s/v2/p/%d", b.links.AppURL, h.ProjectID)
	}
	return fmt.Sprintf("%s/p/%s", b.links.AppURL, h.Project.Handle)
}

func (b *Builder) accountLink(display, address string) string {
	if display == "" {
		display = address
	}
	return fmt.Sprintf("[%s](%s/account/%s)", display, b.links.AppURL, address)
}

func (b *Builder) txLink(hash string) string {
	return fmt.Sprintf("[Etherscan](%s/tx/%s)", b.links.ExplorerURL, hash)
}

func (b *Builder) thumbnail(meta model.ProjectMetadata) *model.Thumbnail {
	if meta.LogoURI == "" {
		return nil
	}
	return &model.Thumbnail{URL: ipfs.GatewayURL(b.links.IPFSGateway, meta.LogoURI)}
}
