package domain

import "encoding/binary"

// RenewalWordSize is the width of the encoded renewal id.
const RenewalWordSize = 32

// DecodeRenewal reads the previous record id from transfer metadata, encoded
// as a big-endian unsigned integer of at most RenewalWordSize bytes. Empty or
// all-zero metadata means no renewal was requested.
func DecodeRenewal(data []byte) (uint64, bool, error) {
	if len(data) > RenewalWordSize {
		return 0, false, ErrInvalidMetadata
	}

	significant := data
	for len(significant) > 0 && significant[0] == 0 {
		significant = significant[1:]
	}
	if len(significant) == 0 {
		return 0, false, nil
	}
	// Ids are uint64, so wider values cannot name an existing record.
	if len(significant) > 8 {
		return 0, true, ErrInactiveOrUnknownRecord
	}

	var word [8]byte
	copy(word[8-len(significant):], significant)
	return binary.BigEndian.Uint64(word[:]), true, nil
}

// EncodeRenewal produces the metadata that renews record id.
func EncodeRenewal(id uint64) []byte {
	word := make([]byte, RenewalWordSize)
	binary.BigEndian.PutUint64(word[RenewalWordSize-8:], id)
	return word
}
