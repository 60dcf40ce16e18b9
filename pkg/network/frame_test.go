package network

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFrame_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]uint8{FrameData, FrameCipher}).Draw(t, "kind")
		payload := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "payload")

		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, kind, payload))
		require.Equal(t, FrameHeaderSize+len(payload), buf.Len())

		gotKind, gotPayload, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, kind, gotKind)
		assert.Equal(t, len(payload), len(gotPayload))
		assert.True(t, bytes.Equal(payload, gotPayload))
	})
}

func TestFrame_Stream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, FrameData, []byte{0x05, 0x54}))
	require.NoError(t, WriteFrame(&buf, FrameCipher, []byte{1}))

	kind, payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, FrameData, kind)
	assert.Equal(t, []byte{0x05, 0x54}, payload)

	kind, payload, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, FrameCipher, kind)
	assert.Equal(t, []byte{1}, payload)

	_, _, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_Errors(t *testing.T) {
	err := WriteFrame(io.Discard, FrameData, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	_, _, err = ReadFrame(bytes.NewReader([]byte{0x7f, 0x00, 0x00}))
	assert.ErrorIs(t, err, ErrUnknownFrame)

	_, _, err = ReadFrame(bytes.NewReader([]byte{FrameData, 0xff, 0xff}))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// header promises more than the stream holds
	_, _, err = ReadFrame(bytes.NewReader([]byte{FrameData, 0x00, 0x04, 0x01}))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)

	_, _, err = ReadFrame(bytes.NewReader([]byte{FrameData}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
