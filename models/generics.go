package models

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

const mysqlErrDuplicateEntry = 1062

// IsDuplicateKeyErr reports a unique-index violation, translated by gorm or raw from the driver.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}

// FindFirst returns (nil, nil) when nothing matches.
func FindFirst[T any](db *gorm.DB, query interface{}, args ...interface{}) (*T, error) {
	var row T
	result := db.Where(query, args...).Order("id").Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// GetOrCreate finds a row by its unique key or inserts the one built by create.
//
// find must return (nil, nil) when the row is absent. The insert runs in a savepoint;
// if another writer inserted the same key first, the savepoint is rolled back and the
// winner is re-read with a shared lock, so the caller never sees the conflict.
func GetOrCreate[T any](tx *gorm.DB, find func(db *gorm.DB) (*T, error), create func() (*T, error)) (row *T, created bool, err error) {
	row, err = find(tx)
	if err != nil {
		return nil, false, err
	}
	if row != nil {
		return row, false, nil
	}

	row, err = create()
	if err != nil {
		return nil, false, err
	}
	err = tx.Transaction(func(sp *gorm.DB) error {
		return sp.Omit(clause.Associations).Create(row).Error
	})
	if err == nil {
		return row, true, nil
	}
	if !IsDuplicateKeyErr(err) {
		return nil, false, err
	}

	row, err = find(tx.Clauses(clause.Locking{Strength: "SHARE"}))
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, fmt.Errorf("re-read after duplicate key: %w", utils.ErrorRecordNotFound)
	}
	return row, false, nil
}
