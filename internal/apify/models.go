package apify

import (
	"encoding/json"
	"time"
)

// Run statuses reported by the Apify platform
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimedOut  = "TIMED-OUT"
	StatusAborted   = "ABORTED"
)

// IsTerminalStatus reports whether a run status will never change again.
// Aborted runs are terminal too, polling past them would spin until the
// attempt budget runs out.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted:
		return true
	}
	return false
}

// Run represents an actor run on the Apify platform
type Run struct {
	ID               string     `json:"id"`
	ActorID          string     `json:"actId"`
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	DefaultDatasetID string     `json:"defaultDatasetId,omitempty"`
	ExitCode         *int       `json:"exitCode,omitempty"`
}

// runEnvelope is the {"data": {...}} wrapper Apify puts around run objects
type runEnvelope struct {
	Data Run `json:"data"`
}

// ProxyConfiguration controls the proxy settings passed to the actor
type ProxyConfiguration struct {
	UseApifyProxy bool     `json:"useApifyProxy"`
	ProxyGroups   []string `json:"apifyProxyGroups,omitempty"`
}

// RunInput is the input document handed to the scraping actor
type RunInput struct {
	VINs           []string            `json:"vins"`
	CarfaxUsername string              `json:"carfaxUsername,omitempty"`
	CarfaxPassword string              `json:"carfaxPassword,omitempty"`
	SessionCookie  string              `json:"sessionCookie,omitempty"`
	Proxy          *ProxyConfiguration `json:"proxyConfiguration,omitempty"`
}

// DatasetItem is one scraped record from a run's default dataset. The
// actor's output schema drifts, so everything beyond the VIN is optional
// and the raw document is kept alongside the typed fields.
type DatasetItem struct {
	VIN                string          `json:"vin"`
	Year               int             `json:"year,omitempty"`
	Make               string          `json:"make,omitempty"`
	Model              string          `json:"model,omitempty"`
	Trim               string          `json:"trim,omitempty"`
	Mileage            int             `json:"mileage,omitempty"`
	Price              string          `json:"price,omitempty"`
	Color              string          `json:"color,omitempty"`
	EngineType         string          `json:"engineType,omitempty"`
	Transmission       string          `json:"transmission,omitempty"`
	AccidentCount      int             `json:"accidentCount,omitempty"`
	OwnerCount         int             `json:"ownerCount,omitempty"`
	ServiceRecordCount int             `json:"serviceRecordCount,omitempty"`
	AccidentHistory    json.RawMessage `json:"accidentHistory,omitempty"`
	ServiceHistory     json.RawMessage `json:"serviceHistory,omitempty"`
	OwnershipHistory   json.RawMessage `json:"ownershipHistory,omitempty"`
	TitleInfo          json.RawMessage `json:"titleInfo,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// AccountInfo describes the Apify account the API key belongs to
type AccountInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Plan     struct {
		ID string `json:"id"`
	} `json:"plan"`
}

type accountEnvelope struct {
	Data AccountInfo `json:"data"`
}
