package session

import (
	"errors"
	"regexp"
)

var returningIdPattern = regexp.MustCompile(`(?is)^\s*INSERT\s.+\sRETURNING\s+"?id"?\s*;?\s*$`)

// IsAutoincrementInsertQuery reports whether query is an INSERT returning the generated id.
func IsAutoincrementInsertQuery(query string) bool {
	return returningIdPattern.MatchString(query)
}

func NewResult(lastInsertId, rowsAffected int64) ResultImp {
	return ResultImp{lastInsertId, rowsAffected}
}

type ResultImp struct {
	lastInsertId int64
	rowsAffected int64
}

func (r ResultImp) LastInsertId() (int64, error) {
	if r.rowsAffected == 0 {
		return r.lastInsertId, nil
	}
	return 0, errors.New("LastInsertId is not supported by this driver")
}

func (r ResultImp) RowsAffected() (int64, error) {
	if r.lastInsertId == 0 {
		return r.rowsAffected, nil
	}
	return 0, errors.New("RowsAffected is not supported by INSERT command")
}
