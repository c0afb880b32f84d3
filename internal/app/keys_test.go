package app

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyByteLength(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	cases := map[string]struct {
		value string
		want  int
	}{
		"hex":        {value: strings.Repeat("ab", 32), want: 32},
		"base64":     {value: base64.StdEncoding.EncodeToString(raw), want: 32},
		"raw base64": {value: base64.RawStdEncoding.EncodeToString(raw[:31]), want: 31},
		"raw bytes":  {value: "this-is-a-raw-key!", want: 18},
		"empty":      {value: "", want: 0},
		"whitespace": {value: "   ", want: 0},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			length, err := KeyByteLength(tc.value)
			require.NoError(t, err)
			require.Equal(t, tc.want, length)
		})
	}
}
