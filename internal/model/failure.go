package model

// Failure stages recorded in the error log.
const (
	StageFetch   = "fetch"
	StageEnrich  = "enrich"
	StageDeliver = "deliver"
)

// FailureRecord captures a failed fetch, enrichment, or delivery.
type FailureRecord struct {
	At        string `json:"ts"`
	RunID     string `json:"run_id"`
	Stream    string `json:"stream"`
	Stage     string `json:"stage"`
	TxHash    string `json:"tx_hash,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error"`
}
