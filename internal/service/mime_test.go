package service

import (
	"MediaVault/config"
	"MediaVault/model"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMIME(t *testing.T) {
	assert.Equal(t, "image/png", normalizeMIME(" Image/PNG; charset=binary "))
	assert.Equal(t, "", normalizeMIME(""))
}

func TestKindOf(t *testing.T) {
	kind, ok := kindOf("image/heic")
	require.True(t, ok)
	assert.Equal(t, model.AssetKindImage, kind)

	kind, ok = kindOf("video/quicktime")
	require.True(t, ok)
	assert.Equal(t, model.AssetKindVideo, kind)

	_, ok = kindOf("audio/mpeg")
	assert.False(t, ok)
}

func TestSniffMIME(t *testing.T) {
	policy := config.DefaultMediaPolicy()
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpg := append([]byte("\xff\xd8\xff\xe0"), make([]byte, 64)...)

	got, err := sniffMIME(bytes.NewReader(png), "image/png", model.AssetKindImage, policy.ImageMIMETypes)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)

	// a mislabelled image of an allowed type is recorded as what it is
	got, err = sniffMIME(bytes.NewReader(jpg), "image/png", model.AssetKindImage, policy.ImageMIMETypes)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got)

	_, err = sniffMIME(bytes.NewReader([]byte("plain words")), "image/png", model.AssetKindImage, policy.ImageMIMETypes)
	assert.Error(t, err)
}
