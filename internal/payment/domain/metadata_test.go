package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRenewal(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		id      uint64
		renew   bool
		wantErr error
	}{
		{name: "empty", data: nil},
		{name: "all zero word", data: make([]byte, 32)},
		{name: "encoded word", data: EncodeRenewal(7), id: 7, renew: true},
		{name: "short big endian", data: []byte{0x01, 0x00}, id: 256, renew: true},
		{name: "max uint64", data: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, id: ^uint64(0), renew: true},
		{name: "too long", data: make([]byte, 33), wantErr: ErrInvalidMetadata},
		{name: "beyond uint64", data: append([]byte{0x01}, make([]byte, 8)...), renew: true, wantErr: ErrInactiveOrUnknownRecord},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, renew, err := DecodeRenewal(tc.data)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.id, id)
			assert.Equal(t, tc.renew, renew)
		})
	}
}

func TestEncodeRenewalIsOneWord(t *testing.T) {
	word := EncodeRenewal(1)
	assert.Len(t, word, RenewalWordSize)
	assert.Equal(t, byte(1), word[31])
}
