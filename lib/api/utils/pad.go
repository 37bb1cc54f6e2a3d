package utils

import (
	"fmt"

	"github.com/ether/easysync/lib/pad"
)

// CheckPad validates padID and checks whether the pad exists as required.
func CheckPad(padID string, shouldExist bool, manager *pad.Manager) error {
	if !manager.IsValidPadId(padID) {
		return fmt.Errorf("%w: %s", pad.ErrInvalidPadId, padID)
	}

	exists, err := manager.DoesPadExist(padID)
	if err != nil {
		return err
	}
	if !exists && shouldExist {
		return fmt.Errorf("%w: %s", pad.ErrPadNotFound, padID)
	}
	if exists && !shouldExist {
		return fmt.Errorf("%w: %s", pad.ErrPadExists, padID)
	}
	return nil
}
