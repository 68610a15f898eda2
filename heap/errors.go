package heap

import "fmt"

func errBadSlot(slotIdx uint16) error {
	return fmt.Errorf("slot %d does not hold a live record", slotIdx)
}
