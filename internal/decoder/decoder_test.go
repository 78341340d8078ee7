package decoder

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDecodeQuotingStyles(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("X"))

	pages := []string{
		"<script>document.body.innerHTML = atob('" + encoded + "');</script>",
		"<script>document.body.innerHTML = atob(\"" + encoded + "\");</script>",
		"<script>document.body.innerHTML = atob(`" + encoded + "`);</script>",
	}

	for _, html := range pages {
		payload, err := Decode(html)
		require.NoError(t, err)
		require.True(t, payload.WasObfuscated, html)
		require.Equal(t, "X", payload.Text, html)
	}
}

func TestDecodeFirstMatchWins(t *testing.T) {
	first := base64.StdEncoding.EncodeToString([]byte("first"))
	second := base64.StdEncoding.EncodeToString([]byte("second"))

	payload, err := Decode("atob(`" + first + "`) atob('" + second + "')")
	require.NoError(t, err)
	require.Equal(t, "first", payload.Text)
}

func TestDecodeMultilineBacktick(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`<p>Q834. Download <a href="data.csv">file</a></p><span class="origin">https://example.com</span>`))
	wrapped := encoded[:20] + "\n  " + encoded[20:]

	payload, err := Decode("<div id=result></div><script>atob(`" + wrapped + "`)</script>")
	require.NoError(t, err)
	require.True(t, payload.WasObfuscated)
	require.Contains(t, payload.Text, `<span class="origin">https://example.com</span>`)
}

func TestDecodeMissingPadding(t *testing.T) {
	encoded := base64.RawStdEncoding.EncodeToString([]byte("ab"))
	payload, err := Decode("atob('" + encoded + "')")
	require.NoError(t, err)
	require.Equal(t, "ab", payload.Text)
}

func TestDecodeWithoutMarker(t *testing.T) {
	html := "<html><body><span class=\"origin\">https://x</span></body></html>"

	payload, err := Decode(html)
	require.NoError(t, err)
	require.False(t, payload.WasObfuscated)
	require.Equal(t, html, payload.Text)

	again, err := Decode(payload.Text)
	require.NoError(t, err)
	require.Equal(t, payload, again)
}

func TestDecodeMalformedFallsBack(t *testing.T) {
	html := "<script>atob('!!!not base64!!!')</script>"

	payload, err := Decode(html)
	require.True(t, errors.Is(err, ErrMalformedPayload))
	require.False(t, payload.WasObfuscated)
	require.Equal(t, html, payload.Text)
}

func TestDecodeDropsInvalidUtf8(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte{'o', 'k', 0xff, 0xfe, '!'})

	payload, err := Decode("atob('" + encoded + "')")
	require.NoError(t, err)
	require.Equal(t, "ok!", payload.Text)
}
