package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
)

var ErrInvalidNumber = errors.New("invalid base-36 number")

func RandomString(length int) string {
	bytes := make([]byte, length)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// NumToString encodes num as lowercase base-36, the integer form used by the
// changeset wire format.
func NumToString(num int) string {
	return strconv.FormatInt(int64(num), 36)
}

// ParseNum decodes a lowercase base-36 number. Signs and upper case letters
// are not part of the wire format and are rejected.
func ParseNum(num string) (int, error) {
	if num == "" {
		return 0, ErrInvalidNumber
	}
	for _, c := range num {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'z') {
			return 0, ErrInvalidNumber
		}
	}
	var res, err = strconv.ParseInt(num, 36, 0)
	if err != nil {
		return 0, err
	}
	return int(res), nil
}
