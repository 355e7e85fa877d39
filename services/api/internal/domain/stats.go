package domain

import "github.com/shopspring/decimal"

// MarketStats is a point-in-time summary for the admin chat and API.
type MarketStats struct {
	Users           int
	BlockedUsers    int
	AvailableSites  int
	SoldSites       int
	ActiveOffers    int
	WinningOffers   int
	PendingOrders   int
	ConfirmedOrders int
	Revenue         decimal.Decimal
}
