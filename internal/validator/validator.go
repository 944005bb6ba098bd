package validator

import (
	"errors"
	"regexp"
	"strings"

	"donation-service/internal/domain"
)

var (
	ErrEmptyEmail         = errors.New("email is empty")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrEmptyStoryID       = errors.New("story ID is empty")
	ErrEmptyDonationID    = errors.New("donation ID is empty")
	ErrEmptyUserID        = errors.New("user ID is empty")
	ErrAmountBelowMinimum = errors.New("amount is below the minimum donation")
	ErrEmptyTitle         = errors.New("title is empty")
	ErrInvalidGoalAmount  = errors.New("goal amount must be greater than 0")
	ErrMessageTooLong     = errors.New("message exceeds 500 characters")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	return nil
}

func ValidateStoryID(storyID string) error {
	if strings.TrimSpace(storyID) == "" {
		return ErrEmptyStoryID
	}
	return nil
}

func ValidateDonationID(donationID string) error {
	if strings.TrimSpace(donationID) == "" {
		return ErrEmptyDonationID
	}
	return nil
}

func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

func ValidateAmount(amount int64) error {
	if amount < domain.MinimumDonation {
		return ErrAmountBelowMinimum
	}
	return nil
}

func ValidateMessage(message string) error {
	if len(message) > 500 {
		return ErrMessageTooLong
	}
	return nil
}

func ValidateStoryTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

func ValidateGoalAmount(goal int64) error {
	if goal <= 0 {
		return ErrInvalidGoalAmount
	}
	return nil
}
