package utils

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidRev = errors.New("invalid revision number")

func CheckValidRev(rev string) (*int, error) {
	var revNum, err = strconv.Atoi(rev)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRev, rev)
	}
	if revNum < 0 {
		return nil, fmt.Errorf("%w: %d is negative", ErrInvalidRev, revNum)
	}
	return &revNum, nil
}
