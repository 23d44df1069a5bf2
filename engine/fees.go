package engine

import "math"

// SplitFee computes the protocol fee for a price with a
// fee/basisPoints rate snapshot. Integer division truncates toward
// zero, so feeAmount+netAmount == price always holds.
func SplitFee(price uint64, fee, basisPoints uint16) (feeAmount, netAmount uint64, err error) {
	if basisPoints == 0 {
		return 0, 0, ErrZeroBasisPoints
	}
	if fee != 0 && price > math.MaxUint64/uint64(fee) {
		return 0, 0, ErrAmountOverflow
	}
	feeAmount = price * uint64(fee) / uint64(basisPoints)
	if feeAmount > price {
		return 0, 0, ErrAmountOverflow
	}
	netAmount = price - feeAmount
	return feeAmount, netAmount, nil
}
