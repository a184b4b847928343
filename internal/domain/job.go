package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorKind identifies the backend a job was submitted to.
type VendorKind string

const (
	VendorTensorArt VendorKind = "tensor_art"
	VendorCivitAI   VendorKind = "civitai"
	VendorLocal     VendorKind = "local"
)

// Valid reports whether v names a known vendor.
func (v VendorKind) Valid() bool {
	switch v {
	case VendorTensorArt, VendorCivitAI, VendorLocal:
		return true
	default:
		return false
	}
}

// SeedVendorChooses asks the vendor to pick a random seed.
const SeedVendorChooses int64 = -1

// GenerationJob is the system of record for one vendor job.
type GenerationJob struct {
	ID            int64
	EventID       int64
	Vendor        VendorKind
	ExternalID    string
	VendorToken   *string
	Prompt        string
	Seed          int64
	Status        Status
	Credits       decimal.Decimal
	QueuePosition int
	QueueLength   int
	Created       time.Time
	Updated       time.Time
}

// JobUpdate carries the fields the poller is allowed to change.
type JobUpdate struct {
	Status        Status
	Credits       decimal.Decimal
	QueuePosition int
	QueueLength   int
}
