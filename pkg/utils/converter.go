package utils

import (
	"unsafe"
)

// StringToBytes converts string to a byte slice without any memory allocation.
// The result must not be modified.
func StringToBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
