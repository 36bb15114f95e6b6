package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrRepairImpossible     = errors.New("profile repair impossible")
	ErrStudentWithoutSchool = fmt.Errorf("%w: student has no school affiliation", ErrRepairImpossible)
	ErrUnknownRole          = errors.New("unknown role")

	ErrNotificationStoreUnavailable = errors.New("notification store unavailable")
	ErrDuplicateNotification        = errors.New("duplicate notification")
	ErrNotificationNotFound         = errors.New("notification not found")
	ErrUnknownEvent                 = errors.New("unknown event kind")
)
