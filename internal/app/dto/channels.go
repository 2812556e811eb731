package dto

type ChannelItemResult struct {
	Channel string `json:"channel"`
	Synced  bool   `json:"synced"`
	Skipped string `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ReservationSyncResult struct {
	ReservationID string              `json:"reservation_id"`
	Items         []ChannelItemResult `json:"items"`
}

type BlockSyncReport struct {
	Channel   string   `json:"channel"`
	DatesSent int      `json:"dates_sent"`
	Closed    int      `json:"closed"`
	Chunks    int      `json:"chunks"`
	DryRun    bool     `json:"dry_run"`
	Errors    []string `json:"errors,omitempty"`
}

type BlockSyncResult struct {
	ChaletID string            `json:"chalet_id"`
	Reports  []BlockSyncReport `json:"reports"`
}

type PendingSyncResult struct {
	Attempted int                     `json:"attempted"`
	Synced    int                     `json:"synced"`
	Failed    int                     `json:"failed"`
	Results   []ReservationSyncResult `json:"results,omitempty"`
}

type PaymentOutcome struct {
	Action        string `json:"action"`
	ReservationID string `json:"reservation_id,omitempty"`
	Status        string `json:"status,omitempty"`
}
