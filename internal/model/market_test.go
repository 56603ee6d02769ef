package model_test

import (
	"testing"

	"StockPipeline/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    model.Symbol
		wantErr bool
	}{
		{in: "AAPL", want: "AAPL"},
		{in: " msft ", want: "MSFT"},
		{in: "BRK.B", want: "BRK.B"},
		{in: "RDS-A", want: "RDS-A"},
		{in: "7203.T", want: "7203.T"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: ".AAPL", wantErr: true},
		{in: "AA PL", wantErr: true},
		{in: "AAPL&apikey=x", wantErr: true},
		{in: "ABCDEFGHIJKLM", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := model.ParseSymbol(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
