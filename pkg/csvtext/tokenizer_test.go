package csvtext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want [][]string
	}{
		{"empty", "", nil},
		{"single row no newline", "a,b,c", [][]string{{"a", "b", "c"}}},
		{"trailing LF dropped", "a,b\n", [][]string{{"a", "b"}}},
		{"CRLF", "a,b\r\nc,d\r\n", [][]string{{"a", "b"}, {"c", "d"}}},
		{"lone CR", "a\rb\r", [][]string{{"a"}, {"b"}}},
		{"BOM stripped", "\ufeffh1,h2\n1,2", [][]string{{"h1", "h2"}, {"1", "2"}}},
		{"quoted comma and newline", "\"a,b\",\"x\ny\"\n", [][]string{{"a,b", "x\ny"}}},
		{"escaped quote", "\"say \"\"hi\"\"\",z", [][]string{{`say "hi"`, "z"}}},
		{"empty fields", ",,\n", [][]string{{"", "", ""}}},
		{"blank line in middle kept", "a\n\nb", [][]string{{"a"}, {""}, {"b"}}},
		{"unterminated quote swallows rest", "a,\"open\nb,c", [][]string{{"a", "open\nb,c"}}},
		{"quote mid field toggles", `ab"c,d"e`, [][]string{{"abc,de"}}},
		{"multibyte", "社内,協力\n", [][]string{{"社内", "協力"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Tokenize(tc.in))
		})
	}
}
