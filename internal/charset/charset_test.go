package charset_test

import (
	"testing"

	"github.com/corvid-labs/capsule/internal/charset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_HeaderOverridesMetaAndStatistical(t *testing.T) {
	body := []byte(`<html><head><meta charset="shift_jis"></head><body>hello</body></html>`)
	tag := charset.Detect("text/html; charset=UTF-8", body)
	assert.Equal(t, charset.UTF8, tag)
}

func TestDetect_MetaCharsetOverridesHttpEquivAndStatistical(t *testing.T) {
	body := []byte(`<html><head><meta charset="Big5"><meta http-equiv="Content-Type" content="text/html; charset=GBK"></head></html>`)
	tag := charset.Detect("", body)
	assert.Equal(t, charset.Big5, tag)
}

func TestDetect_HttpEquivUsedWhenNoOtherSignal(t *testing.T) {
	body := []byte(`<html><head><meta http-equiv="Content-Type" content="text/html; charset=windows-1252"></head></html>`)
	tag := charset.Detect("", body)
	assert.Equal(t, charset.Windows1252, tag)
}

func TestDetect_FallsBackToStatisticalDetection(t *testing.T) {
	body := []byte(`<html><body>plain ascii content with no declared charset at all</body></html>`)
	tag := charset.Detect("", body)
	assert.NotEmpty(t, tag)
}

func TestDecode_UTF8RoundTrips(t *testing.T) {
	text := "héllo wörld"
	decoded, err := charset.Decode(charset.UTF8, []byte(text))
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestDecode_InvalidUTF8IsError(t *testing.T) {
	_, err := charset.Decode(charset.UTF8, []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, charset.ErrCharset)
}

func TestDecode_Windows1252HandlesLatin1Bytes(t *testing.T) {
	// 0xe9 is "é" in both Windows-1252 and ISO-8859-1/Latin-1.
	decoded, err := charset.Decode(charset.Windows1252, []byte{'c', 'a', 'f', 0xe9})
	require.NoError(t, err)
	assert.Equal(t, "café", decoded)
}
