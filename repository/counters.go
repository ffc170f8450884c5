package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// counterDelta builds a single-statement counter update that never drops below zero
func counterDelta(column string, delta int) clause.Expr {
	switch {
	case delta > 0:
		return gorm.Expr(fmt.Sprintf("%s + ?", column), delta)
	case delta < 0:
		return gorm.Expr(fmt.Sprintf("CASE WHEN %s >= ? THEN %s - ? ELSE 0 END", column, column), -delta, -delta)
	default:
		return gorm.Expr(column)
	}
}
