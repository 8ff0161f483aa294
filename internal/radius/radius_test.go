package radius

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	t.Run("DecodesWellFormedHeader", func(t *testing.T) {
		buf := make([]byte, 20)
		buf[0] = byte(CodeAccountingReq)
		buf[1] = 7
		buf[2] = 0x00
		buf[3] = 0x14 // length 20

		h, err := DecodeHeader(buf)
		require.NoError(t, err)
		assert.Equal(t, CodeAccountingReq, h.Code)
		assert.Equal(t, uint8(7), h.Identifier)
		assert.Equal(t, uint16(20), h.Length)
	})

	t.Run("RejectsShortBuffer", func(t *testing.T) {
		_, err := DecodeHeader(make([]byte, 19))
		assert.ErrorIs(t, err, ErrBufferOverflow)
	})
}

func TestDecodeAttribute(t *testing.T) {
	t.Run("DecodesWellFormedAttribute", func(t *testing.T) {
		a, err := DecodeAttribute([]byte{1, 5, 'a', 'b', 'c'})
		require.NoError(t, err)
		assert.Equal(t, AttrUserName, a.Type)
		assert.Equal(t, uint8(5), a.Length)
	})

	t.Run("RejectsShortBuffer", func(t *testing.T) {
		_, err := DecodeAttribute([]byte{1})
		assert.ErrorIs(t, err, ErrBufferOverflow)
	})

	t.Run("RejectsLengthBelowHeaderSize", func(t *testing.T) {
		_, err := DecodeAttribute([]byte{1, 1})
		assert.ErrorIs(t, err, ErrMalformedAttr)
	})

	t.Run("RejectsZeroLength", func(t *testing.T) {
		_, err := DecodeAttribute([]byte{1, 0})
		assert.ErrorIs(t, err, ErrMalformedAttr)
	})
}

func TestDecodeString(t *testing.T) {
	t.Run("DecodesValue", func(t *testing.T) {
		s, err := DecodeString([]byte("alice"))
		require.NoError(t, err)
		assert.Equal(t, "alice", s)
	})

	t.Run("RejectsEmpty", func(t *testing.T) {
		_, err := DecodeString(nil)
		assert.ErrorIs(t, err, ErrEmptyString)
	})

	t.Run("AcceptsExactly253Bytes", func(t *testing.T) {
		v := make([]byte, MaxStringValue)
		for i := range v {
			v[i] = 'x'
		}
		_, err := DecodeString(v)
		require.NoError(t, err)
	})

	t.Run("Rejects254Bytes", func(t *testing.T) {
		v := make([]byte, MaxStringValue+1)
		_, err := DecodeString(v)
		assert.ErrorIs(t, err, ErrOversizedString)
	})
}

func TestDecodeAddress(t *testing.T) {
	t.Run("FormatsDottedDecimal", func(t *testing.T) {
		addr, err := DecodeAddress([]byte{192, 168, 10, 22})
		require.NoError(t, err)
		assert.Equal(t, "192.168.10.22", addr)
	})

	t.Run("HandlesSmallOctets", func(t *testing.T) {
		addr, err := DecodeAddress([]byte{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, "1.2.3.4", addr)
	})

	t.Run("RejectsShortBuffer", func(t *testing.T) {
		_, err := DecodeAddress([]byte{192, 168})
		assert.ErrorIs(t, err, ErrBufferOverflow)
	})
}

func TestDecodeUint32(t *testing.T) {
	t.Run("DecodesBigEndian", func(t *testing.T) {
		v, err := DecodeUint32([]byte{0x00, 0x00, 0x00, 0x02})
		require.NoError(t, err)
		assert.Equal(t, uint32(2), v)
	})

	t.Run("RejectsShortBuffer", func(t *testing.T) {
		_, err := DecodeUint32([]byte{0x00, 0x00})
		assert.ErrorIs(t, err, ErrBufferOverflow)
	})
}
