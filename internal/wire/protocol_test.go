package wire_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricenegotiator/internal/wire"
)

func TestFormatRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tag     wire.Tag
		item    string
		want    string
		wantErr error
	}{
		{"static", wire.Static, "laptop", "STATIC:PRICE:laptop\n", nil},
		{"dynamic", wire.Dynamic, "headphones", "DYNAMIC:PRICE:headphones\n", nil},
		{"empty item", wire.Static, "", "", wire.ErrInvalidItem},
		{"colon in item", wire.Static, "a:b", "", wire.ErrInvalidItem},
		{"newline in item", wire.Dynamic, "a\nb", "", wire.ErrInvalidItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wire.FormatRequest(tt.tag, tt.item)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRequest_UnknownTag(t *testing.T) {
	t.Parallel()

	_, err := wire.FormatRequest(wire.Tag("LIVE"), "laptop")
	require.Error(t, err)
}

func TestParseResponse_Prices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
	}{
		{"plain", "STATIC:PRICE:laptop:15000000.0", "15000000"},
		{"java exponent", "STATIC:PRICE:laptop:1.5E7", "15000000"},
		{"fraction", "DYNAMIC:PRICE:smartphone:7623441.25", "7623441.25"},
		{"crlf", "DYNAMIC:PRICE:x:109\r\n", "109"},
		{"padded", "  STATIC:PRICE:x:100  ", "100"},
		{"single field", "42", "42"},
		{"extra leading fields", "A:B:C:D:E:99.5", "99.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wire.ParseResponse(wire.Static, "x", tt.line)
			require.NoError(t, err)
			require.Truef(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseResponse_ErrorLine(t *testing.T) {
	t.Parallel()

	_, err := wire.ParseResponse(wire.Static, "Z", "ERROR:UNKNOWN_ITEM")
	require.ErrorIs(t, err, wire.ErrPeerRefused)
	require.NotErrorIs(t, err, wire.ErrMalformed)

	var perr *wire.ProtocolError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, wire.Static, perr.Tag)
	require.Equal(t, "Z", perr.Item)
	require.Equal(t, "UNKNOWN_ITEM", perr.Reason)
}

func TestParseResponse_Malformed(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		"STATIC:PRICE:laptop:",
		"STATIC:PRICE:laptop:cheap",
		"STATIC:PRICE:laptop:NaN",
		"STATIC:PRICE:laptop:-5",
		"error:lowercase is not an error line",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := wire.ParseResponse(wire.Dynamic, "laptop", line)
			require.ErrorIs(t, err, wire.ErrMalformed)
			require.NotErrorIs(t, err, wire.ErrPeerRefused)

			var merr *wire.MalformedResponseError
			require.True(t, errors.As(err, &merr))
			require.Equal(t, wire.Dynamic, merr.Tag)
			require.Equal(t, "laptop", merr.Item)
		})
	}
}

func TestParseResponse_Idempotent(t *testing.T) {
	t.Parallel()

	line := "DYNAMIC:PRICE:laptop:16234567.891"
	first, err := wire.ParseResponse(wire.Dynamic, "laptop", line)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := wire.ParseResponse(wire.Dynamic, "laptop", line)
		require.NoError(t, err)
		require.True(t, first.Equal(again))
	}
}
