package domain

import "time"

type BillingFrequency string

const (
	FrequencyMonthly BillingFrequency = "monthly"
	FrequencyAnnual  BillingFrequency = "annual"
)

// ExpiryNotice is how long before expiry school and system admins are warned.
func (f BillingFrequency) ExpiryNotice() time.Duration {
	if f == FrequencyAnnual {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

type PaymentType string

const (
	PaymentInitial              PaymentType = "initial"
	PaymentRenewal              PaymentType = "renewal"
	PaymentStudentLimitIncrease PaymentType = "student_limit_increase"
	PaymentStudentLimitDecrease PaymentType = "student_limit_decrease"
	PaymentFrequencyChange      PaymentType = "frequency_change"
)

type SchoolSubscription struct {
	ID         string
	SchoolID   string
	SchoolName string
	Frequency  BillingFrequency
	ExpiresAt  time.Time
}

// ExpiringSoon reports whether the subscription has not expired yet but will
// within its frequency's notice window.
func (s SchoolSubscription) ExpiringSoon(now time.Time) bool {
	if !s.ExpiresAt.After(now) {
		return false
	}
	return s.ExpiresAt.Sub(now) <= s.Frequency.ExpiryNotice()
}

// PeriodKey identifies one billing period of the subscription. Extending the
// expiry starts a new period.
func (s SchoolSubscription) PeriodKey() string {
	return s.ID + ":" + s.ExpiresAt.UTC().Format(time.DateOnly)
}
