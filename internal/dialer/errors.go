package dialer

import (
	"errors"
	"fmt"

	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/credits"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrNoCredentials      = errors.New("telephony credentials not configured for account")
	ErrAlreadyRun         = campaigns.ErrAlreadyRun
	ErrNoEligibleContacts = errors.New("no eligible contacts to call")
)

// CreditShortfallError rejects a start whose balance cannot cover every eligible contact.
type CreditShortfallError struct {
	Balance      int64
	Required     int64
	PurchaseLink string
}

func (e *CreditShortfallError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

func (e *CreditShortfallError) Unwrap() error { return credits.ErrInsufficientCredits }
