package models

// OrderSequence hands out the per-day NNNN suffix of order numbers. The row
// for the current day is locked FOR UPDATE inside the settlement
// transaction, which serializes concurrent numbering without a global lock.
type OrderSequence struct {
	Day       string `gorm:"column:day;primaryKey;size:8"`
	LastValue int    `gorm:"column:last_value;not null;default:0"`
}
