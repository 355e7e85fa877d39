package domain

import "errors"

// Kind classifies a rejection so transports can map it to a stable status.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindState       Kind = "state"
	KindBlocked     Kind = "blocked"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error is a user-facing rejection with a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidID         = newError(KindValidation, "invalid_id", "invalid id")
	ErrInvalidPrice      = newError(KindValidation, "invalid_price", "price must be positive with at most two decimal places")
	ErrInvalidPriceType  = newError(KindValidation, "invalid_price_type", "price type must be fixed or offer")
	ErrInvalidDuration   = newError(KindValidation, "invalid_duration", "duration must not be negative")
	ErrInvalidSiteStatus = newError(KindValidation, "invalid_site_status", "invalid site status")
	ErrSiteTitleRequired = newError(KindValidation, "site_title_required", "site title required")
	ErrSiteURLRequired   = newError(KindValidation, "site_url_required", "site url required")
	ErrNoFixedPrice      = newError(KindValidation, "no_fixed_price", "site has no fixed price")
	ErrUsernameRequired  = newError(KindValidation, "username_required", "username required")
	ErrSiteNotFound      = newError(KindNotFound, "site_not_found", "site not found")
	ErrUserNotFound      = newError(KindNotFound, "user_not_found", "user not found")
	ErrOfferNotFound     = newError(KindNotFound, "offer_not_found", "offer not found")
	ErrCartItemNotFound  = newError(KindNotFound, "cart_item_not_found", "item not found in cart")
	ErrOrderNotFound     = newError(KindNotFound, "order_not_found", "order not found")
	ErrSiteUnavailable   = newError(KindUnavailable, "site_unavailable", "site is not available")
	ErrNoWinningOffer    = newError(KindUnavailable, "offer_unavailable", "offer no longer available")
	ErrOfferTooLow       = newError(KindConflict, "offer_too_low", "offer must be higher than the current maximum")
	ErrAuctionClosed     = newError(KindConflict, "auction_closed", "auction for this site is closed")
	ErrAlreadyInCart     = newError(KindConflict, "already_in_cart", "item already in cart")
	ErrAlreadyReserved   = newError(KindConflict, "already_reserved", "cart is already reserved")
	ErrUsernameTaken     = newError(KindConflict, "username_taken", "username already taken")
	ErrConcurrentUpdate  = newError(KindConflict, "concurrent_update", "concurrent update, retry")
	ErrTooFewToReserve   = newError(KindState, "too_few_items", "reservation requires at least 2 items")
	ErrItemReserved      = newError(KindState, "item_reserved", "reserved items cannot be removed")
	ErrReservationNeeded = newError(KindState, "reservation_required", "orders of 2 or more items require a reservation")
	ErrCartEmpty         = newError(KindState, "cart_empty", "cart is empty")
	ErrIllegalTransition = newError(KindState, "illegal_transition", "illegal status transition")
	ErrSiteSold          = newError(KindState, "site_sold", "sold sites cannot change status")
	ErrUserBlocked       = newError(KindBlocked, "user_blocked", "account is blocked")
	ErrPurchaseDeadline  = newError(KindBlocked, "purchase_deadline_passed", "purchase window expired, account blocked")
)

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
