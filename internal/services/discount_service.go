package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/velora-shop/api/internal/repositories"
)

var (
	// ErrDiscountCodeNotFound is returned when the code does not exist.
	ErrDiscountCodeNotFound = errors.New("discount: code not found")
	// ErrDiscountCodeInactive is returned when the code is disabled.
	ErrDiscountCodeInactive = errors.New("discount: code is not active")
	// ErrDiscountCodeNotStarted is returned before the code's window opens.
	ErrDiscountCodeNotStarted = errors.New("discount: code is not started yet")
	// ErrDiscountCodeExpired is returned after the code's window closes.
	ErrDiscountCodeExpired = errors.New("discount: code is expired")
	// ErrDiscountCodeUsageLimit is returned when the global usage cap is reached.
	ErrDiscountCodeUsageLimit = errors.New("discount: code usage limit reached")
	// ErrDiscountCodeMinAmount is returned when the order is below the code's minimum.
	ErrDiscountCodeMinAmount = errors.New("discount: order amount below code minimum")
	// ErrDiscountCodeAlreadyUsed is returned when this user already consumed the code.
	ErrDiscountCodeAlreadyUsed = errors.New("discount: code already used by user")
)

// DiscountService validates user-entered discount codes and computes their
// amounts.
type DiscountService struct {
	codes repositories.DiscountCodeRepository
	now   func() time.Time
}

// DiscountServiceDeps carries the collaborators for NewDiscountService.
type DiscountServiceDeps struct {
	Codes repositories.DiscountCodeRepository
	Now   func() time.Time
}

// NewDiscountService validates dependencies and constructs the service.
func NewDiscountService(deps DiscountServiceDeps) (*DiscountService, error) {
	if deps.Codes == nil {
		return nil, errors.New("discount service: code repository is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &DiscountService{codes: deps.Codes, now: func() time.Time { return now().UTC() }}, nil
}

// Validate runs the rule chain against a code. The order is fixed so callers
// always see the most fundamental failure first: not found, inactive, not
// started, expired, usage limit, minimum amount, already used by this user.
func (s *DiscountService) Validate(ctx context.Context, code string, userID *int64, orderAmount int64) (DiscountCode, error) {
	code = strings.TrimSpace(code)
	dc, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFound(err) {
			return DiscountCode{}, ErrDiscountCodeNotFound
		}
		return DiscountCode{}, fmt.Errorf("discount: load code: %w", err)
	}
	if !dc.IsActive {
		return DiscountCode{}, ErrDiscountCodeInactive
	}

	now := s.now()
	if dc.StartsAt != nil && now.Before(*dc.StartsAt) {
		return DiscountCode{}, ErrDiscountCodeNotStarted
	}
	if dc.ExpiresAt != nil && now.After(*dc.ExpiresAt) {
		return DiscountCode{}, ErrDiscountCodeExpired
	}

	if dc.UsageLimit != nil {
		used, err := s.codes.CountUsages(ctx, dc.ID)
		if err != nil {
			return DiscountCode{}, fmt.Errorf("discount: count usages: %w", err)
		}
		if used >= *dc.UsageLimit {
			return DiscountCode{}, ErrDiscountCodeUsageLimit
		}
	}

	if dc.MinOrderAmount != nil && orderAmount < *dc.MinOrderAmount {
		return DiscountCode{}, ErrDiscountCodeMinAmount
	}

	if userID != nil {
		used, err := s.codes.HasUserUsage(ctx, dc.ID, *userID)
		if err != nil {
			return DiscountCode{}, fmt.Errorf("discount: check user usage: %w", err)
		}
		if used {
			return DiscountCode{}, ErrDiscountCodeAlreadyUsed
		}
	}

	return dc, nil
}

// Amount computes the discount a validated code grants on an order amount.
func (s *DiscountService) Amount(code DiscountCode, orderAmount int64) int64 {
	return code.Type.Discount(orderAmount, code.Value)
}
