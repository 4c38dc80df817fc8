package export

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSanitize covers the prolog and ampersand fixups.
func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bom stripped",
			in:   "\xef\xbb\xbf<HealthData/>",
			want: "<HealthData/>",
		},
		{
			name: "doctype with internal subset",
			in: "<?xml version=\"1.0\"?>\n<!DOCTYPE HealthData [\n<!ELEMENT HealthData (Record)*>\n" +
				"<!ATTLIST HealthData locale CDATA #REQUIRED>\n]>\n<HealthData/>",
			want: "<?xml version=\"1.0\"?>\n\n<HealthData/>",
		},
		{
			name: "plain doctype",
			in:   "<!DOCTYPE HealthData SYSTEM \"health.dtd\"><HealthData/>",
			want: "<HealthData/>",
		},
		{
			name: "bare ampersand escaped",
			in:   `<a b="AT&T"/>`,
			want: `<a b="AT&amp;T"/>`,
		},
		{
			name: "known entities kept",
			in:   `<a b="&amp; &lt; &gt; &quot; &apos; &#38; &#x26;"/>`,
			want: `<a b="&amp; &lt; &gt; &quot; &apos; &#38; &#x26;"/>`,
		},
		{
			name: "unknown entity escaped",
			in:   `<a b="&nbsp; &#; &#xZZ;"/>`,
			want: `<a b="&amp;nbsp; &amp;#; &amp;#xZZ;"/>`,
		},
		{
			name: "trailing ampersand",
			in:   `<a>x&`,
			want: `<a>x&amp;`,
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

// TestSanitizerStreaming checks the streaming reader across buffer
// boundaries and with one-byte reads.
func TestSanitizerStreaming(t *testing.T) {
	const n = 40000
	body := "<HealthData>" + strings.Repeat(`<r v="a&b &amp; c"/>`, n) + "</HealthData>"

	out, err := io.ReadAll(NewSanitizer(iotest.OneByteReader(strings.NewReader(body))))
	require.NoError(t, err)

	got := string(out)
	assert.Equal(t, 2*n, strings.Count(got, "&amp;"))
	assert.Equal(t, 2*n, strings.Count(got, "&"))
	assert.True(t, strings.HasSuffix(got, "</HealthData>"))
}
