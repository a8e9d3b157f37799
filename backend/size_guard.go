package backend

const bytesPerMiB = 1 << 20

// CheckPayloadSize rejects body when its size in MiB exceeds maxMB. It must
// run before the body is handed to the parser.
func CheckPayloadSize(body []byte, maxMB float64) error {
	sizeMB := float64(len(body)) / bytesPerMiB
	if sizeMB > maxMB {
		return &PayloadTooLargeError{SizeMB: sizeMB, MaxMB: maxMB}
	}
	return nil
}

// maxBytesForMB returns the largest payload in bytes that CheckPayloadSize
// accepts for maxMB.
func maxBytesForMB(maxMB float64) int64 {
	return int64(maxMB * bytesPerMiB)
}
