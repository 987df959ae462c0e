package ports

import (
	"context"

	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// BatteryPort executes one declarative test spec against a dataset. Underpower
// and numerical instability are returned as data (null statistic + warnings),
// never as errors; the error return is reserved for programmer/config faults
// such as an unknown column.
type BatteryPort interface {
	Run(ctx context.Context, s spec.TestSpec, table *dataset.Table, seed int64) (result.TestResult, error)
}
