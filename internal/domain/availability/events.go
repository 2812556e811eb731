package availability

import "time"

type BlocksAdded struct {
	ChaletID string    `json:"chalet_id"`
	Dates    []string  `json:"dates"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func (e BlocksAdded) EventName() string     { return "availability.block_added" }
func (e BlocksAdded) AggregateID() string   { return e.ChaletID }
func (e BlocksAdded) OccurredAt() time.Time { return e.At }

type BlocksRemoved struct {
	ChaletID string    `json:"chalet_id"`
	Dates    []string  `json:"dates"`
	At       time.Time `json:"at"`
}

func (e BlocksRemoved) EventName() string     { return "availability.block_removed" }
func (e BlocksRemoved) AggregateID() string   { return e.ChaletID }
func (e BlocksRemoved) OccurredAt() time.Time { return e.At }
