package model

// ProjectMetadata is the off-chain document a project's metadataUri points at.
type ProjectMetadata struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	LogoURI     string `json:"logoUri,omitempty"`
}

// EnrichedEvent pairs an event with its resolved metadata and identity.
type EnrichedEvent struct {
	Event    Event
	Metadata ProjectMetadata
	Identity string
}
