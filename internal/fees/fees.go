// Package fees computes the platform fee split for a donation.
//
// Amounts are integer minor currency units throughout. The fee is floored so
// fractional remainders always favor the NGO.
package fees

// Rate is the platform fee, expressed as a percentage.
const Rate int64 = 2

// PlatformFee returns floor(amount * 2%).
func PlatformFee(amount int64) int64 {
	return amount * Rate / 100
}

// NGOAmount returns the amount forwarded to the NGO after the platform fee.
func NGOAmount(amount int64) int64 {
	return amount - PlatformFee(amount)
}
