// Package types provides common value types.
package types

import (
	"strconv"
)

// Quantity is a whole-unit stock quantity (bottles, cans, cases).
// It is signed so that transient negative states during a cascade can be represented.
type Quantity int64

func (q Quantity) Int64() int64 { return int64(q) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) String() string { return strconv.FormatInt(int64(q), 10) }
