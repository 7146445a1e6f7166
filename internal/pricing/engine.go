// Package pricing implements the step-decreasing price curve for edition
// sales. All functions are pure; schedules are never mutated.
package pricing

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// UnitPriceAt returns the price of one unit at the given instant.
//
// The price starts at StartPrice and drops by DecreaseSize once per elapsed
// DecreaseInterval, for at most NumDecreases steps; afterwards it is flat at
// the floor. Instants before startTime price at StartPrice. All arithmetic is
// checked: a schedule whose total decrease exceeds its start price yields
// ErrPriceUnderflow instead of wrapping.
func UnitPriceAt(s domain.Schedule, startTime, at time.Time) (*uint256.Int, error) {
	if s.DecreaseInterval <= 0 {
		return nil, domain.ErrZeroDecreaseInterval
	}

	var steps uint64
	if at.After(startTime) {
		steps = uint64(at.Sub(startTime) / s.DecreaseInterval)
	}
	if steps > uint64(s.NumDecreases) {
		steps = uint64(s.NumDecreases)
	}

	drop, overflow := new(uint256.Int).MulOverflow(s.DecreaseSize, uint256.NewInt(steps))
	if overflow {
		return nil, domain.ErrPriceOverflow
	}

	unit, underflow := new(uint256.Int).SubOverflow(s.StartPrice, drop)
	if underflow {
		return nil, domain.ErrPriceUnderflow
	}
	return unit, nil
}

// Quote computes the unit price at the given instant and the total charge for
// quantity units. The multiplication is overflow-checked even though a 96-bit
// unit price times a 32-bit quantity always fits in 128 bits; the width proof
// does not survive a misconfigured schedule.
func Quote(s domain.Schedule, startTime, at time.Time, quantity uint32) (domain.Quote, error) {
	unit, err := UnitPriceAt(s, startTime, at)
	if err != nil {
		return domain.Quote{}, err
	}

	total, overflow := new(uint256.Int).MulOverflow(unit, uint256.NewInt(uint64(quantity)))
	if overflow {
		return domain.Quote{}, domain.ErrPriceOverflow
	}
	return domain.Quote{UnitPrice: unit, TotalPrice: total}, nil
}

// FloorPrice returns the price after all scheduled decreases have applied.
func FloorPrice(s domain.Schedule) (*uint256.Int, error) {
	drop, overflow := new(uint256.Int).MulOverflow(s.DecreaseSize, uint256.NewInt(uint64(s.NumDecreases)))
	if overflow {
		return nil, domain.ErrPriceOverflow
	}
	floor, underflow := new(uint256.Int).SubOverflow(s.StartPrice, drop)
	if underflow {
		return nil, domain.ErrPriceUnderflow
	}
	return floor, nil
}

// FloorAt returns the first instant at which the price has reached the floor.
func FloorAt(s domain.Schedule, startTime time.Time) time.Time {
	return startTime.Add(time.Duration(s.NumDecreases) * s.DecreaseInterval)
}

// Validate checks the schedule fields the pricing formula depends on. Only a
// zero decrease interval is rejected; a curve whose floor would underflow is
// accepted here and surfaces as ErrPriceUnderflow at quote time, so an
// administrator can still fix such a schedule in place.
func Validate(s domain.Schedule) error {
	if s.DecreaseInterval <= 0 {
		return domain.ErrZeroDecreaseInterval
	}
	return nil
}
