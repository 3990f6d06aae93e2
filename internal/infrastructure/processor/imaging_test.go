package processor

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), format))

	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	p := New()

	for name, format := range map[string]imaging.Format{"png": imaging.PNG, "jpeg": imaging.JPEG} {
		t.Run(name, func(t *testing.T) {
			w, h, err := p.Dimensions(encode(t, 32, 18, format))
			require.NoError(t, err)
			assert.Equal(t, 32, w)
			assert.Equal(t, 18, h)
		})
	}
}

func TestDimensionsRejectsGarbage(t *testing.T) {
	_, _, err := New().Dimensions([]byte("not an image"))
	assert.Error(t, err)
}
