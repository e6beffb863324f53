// Package item exposes the read side of the item master.
// Item CRUD lives in the back-office application; the ledger only needs to
// know that a code exists and what it is worth.
package item

import (
	"liquorstock/internal/core/types"
)

// Classification groups items the way excise reports do.
type Classification string

const (
	ClassSpirits Classification = "spirits"
	ClassWine    Classification = "wine"
	ClassBeer    Classification = "beer"
	ClassOther   Classification = "other"
)

// Item is a master record.
type Item struct {
	Code           string         `db:"item_code" gorm:"column:item_code" json:"code"`
	Name           string         `db:"name" gorm:"column:name" json:"name"`
	DefaultRate    types.Money    `db:"default_rate" gorm:"column:default_rate" json:"defaultRate"`
	Classification Classification `db:"classification" gorm:"column:classification" json:"classification"`
}
