package deltaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEndringCodec(t *testing.T) {
	t.Run("round trip keeps type and payload", func(t *testing.T) {
		sluttdato := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		begrunnelse := "forlenget etter avtale"
		original := ForlengDeltakelse{Sluttdato: sluttdato, Begrunnelse: &begrunnelse}

		data, err := MarshalEndring(original)
		require.NoError(t, err)

		got, err := UnmarshalEndring(data)
		require.NoError(t, err)

		forleng, ok := got.(ForlengDeltakelse)
		require.True(t, ok, "expected ForlengDeltakelse, got %T", got)
		require.True(t, forleng.Sluttdato.Equal(sluttdato))
		require.NotNil(t, forleng.Begrunnelse)
		require.Equal(t, begrunnelse, *forleng.Begrunnelse)
	})

	t.Run("unknown tag fails", func(t *testing.T) {
		_, err := UnmarshalEndring([]byte(`{"@type":"SLETT_ALT","payload":{}}`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "SLETT_ALT")
	})

	t.Run("unmarshal yields value form", func(t *testing.T) {
		data, err := MarshalEndring(EndreBakgrunnsinformasjon{Bakgrunnsinformasjon: "info"})
		require.NoError(t, err)

		got, err := UnmarshalEndring(data)
		require.NoError(t, err)
		_, ok := got.(EndreBakgrunnsinformasjon)
		require.True(t, ok, "expected value form, got %T", got)
	})
}
