package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SiteStatus string

const (
	SiteStatusAvailable SiteStatus = "available"
	SiteStatusReserved  SiteStatus = "reserved"
	SiteStatusSold      SiteStatus = "sold"
	SiteStatusHidden    SiteStatus = "hidden"
)

func (s SiteStatus) Valid() bool {
	switch s {
	case SiteStatusAvailable, SiteStatusReserved, SiteStatusSold, SiteStatusHidden:
		return true
	}
	return false
}

// Site is a sellable listing. The core only reads Status and writes the sold fields.
type Site struct {
	ID         string
	Title      string
	URL        string
	FixedPrice decimal.NullDecimal
	Status     SiteStatus
	SoldTo     *string
	SoldAt     *time.Time
	CreatedAt  time.Time
}

func (s Site) Available() bool {
	return s.Status == SiteStatusAvailable
}
