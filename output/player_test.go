package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rampRenderer struct{ next int16 }

func (r *rampRenderer) RenderInto(dst []int16) error {
	for i := range dst {
		dst[i] = r.next
		r.next++
	}
	return nil
}

type failingRenderer struct{}

func (failingRenderer) RenderInto([]int16) error { return errors.New("chain fault") }

func TestRenderStreamEncodesLittleEndian(t *testing.T) {
	s := &renderStream{renderer: &rampRenderer{next: 256}}

	p := make([]byte, 8)
	n, err := s.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	// 256, 257, 258, 259 little-endian.
	assert.Equal(t, []byte{0x00, 0x01, 0x01, 0x01, 0x02, 0x01, 0x03, 0x01}, p)
}

func TestRenderStreamContinuesAcrossBuffers(t *testing.T) {
	s := &renderStream{renderer: &rampRenderer{}}

	p := make([]byte, 4)
	_, err := s.Read(p)
	require.NoError(t, err)
	_, err = s.Read(p)
	require.NoError(t, err)

	// Second read carries on at sample 2.
	assert.Equal(t, []byte{0x02, 0x00, 0x03, 0x00}, p)
}

func TestRenderFailurePlaysSilence(t *testing.T) {
	s := &renderStream{renderer: failingRenderer{}}

	p := []byte{0xff, 0xff, 0xff, 0xff}
	n, err := s.Read(p)
	require.NoError(t, err, "render errors must not stop the stream")
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, p)
}

func TestZeroLengthRead(t *testing.T) {
	s := &renderStream{renderer: &rampRenderer{}}
	n, err := s.Read(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
