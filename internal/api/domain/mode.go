package domain

// Mode selects how the facade serves transfers. It is fixed at startup.
type Mode string

const (
	// ModeProxy streams file bytes through this server.
	ModeProxy Mode = "proxy"
	// ModeIssuance only hands out time-limited URLs for direct transfers.
	ModeIssuance Mode = "issuance"
)
