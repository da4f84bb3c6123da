package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

type CycleState string

const (
	StateIdle         CycleState = "idle"
	StateFetching     CycleState = "fetching"
	StateParsing      CycleState = "parsing"
	StateProcessing   CycleState = "processing"
	StateSleeping     CycleState = "sleeping"
	StateShuttingDown CycleState = "shutting_down"
)

type HuntRun struct {
	ID            int64      `json:"id" db:"id"`
	UID           string     `json:"uid" db:"uid"`
	SiteID        string     `json:"site_id" db:"site_id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsNew   int        `json:"listings_new" db:"listings_new"`
	Notified      int        `json:"notified" db:"notified"`
	Undelivered   int        `json:"undelivered" db:"undelivered"`
	Anomalies     int        `json:"anomalies" db:"anomalies"`
	Note          string     `json:"note" db:"note"`
}
