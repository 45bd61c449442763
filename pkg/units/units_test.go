package units

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Aliases(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
		ok   bool
	}{
		{"kg", Kilogram, true},
		{" Tonnes ", Tonne, true},
		{"t", Tonne, true},
		{"M3", CubicMetre, true},
		{"m³", CubicMetre, true},
		{"kWh", KilowattHour, true},
		{"furlong", Unit("furlong"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestConvert_Mass(t *testing.T) {
	got, err := Convert(decimal.RequireFromString("2.5"), Tonne, Kilogram)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(2500)), "got %s", got)

	got, err = Convert(decimal.NewFromInt(500), Kilogram, Tonne)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("0.5")), "got %s", got)
}

func TestConvert_VolumeAndEnergy(t *testing.T) {
	got, err := Convert(decimal.NewFromInt(1500), Litre, CubicMetre)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1.5")))

	got, err = Convert(decimal.NewFromInt(10), KilowattHour, Megajoule)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(36)))
}

func TestConvert_Incompatible(t *testing.T) {
	_, err := Convert(decimal.NewFromInt(1), Kilogram, CubicMetre)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatible))

	_, err = Convert(decimal.NewFromInt(1), Unit("bags"), Kilogram)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestConvert_SameUnitIsIdentity(t *testing.T) {
	q := decimal.RequireFromString("12.345")
	got, err := Convert(q, Unit("bags"), Unit("BAGS"))
	require.NoError(t, err)
	assert.True(t, got.Equal(q))
}

func TestToKilograms(t *testing.T) {
	kg, ok := ToKilograms(decimal.NewFromInt(3), Tonne)
	require.True(t, ok)
	assert.Equal(t, "3000", kg.String())

	_, ok = ToKilograms(decimal.NewFromInt(3), CubicMetre)
	assert.False(t, ok)
}

func TestComparable(t *testing.T) {
	assert.True(t, Comparable(Kilogram, Tonne))
	assert.True(t, Comparable(Litre, "m3"))
	assert.False(t, Comparable(Kilogram, CubicMetre))
	assert.False(t, Comparable("bags", "bags"))
	assert.Equal(t, "mass", Tonne.Dimension().String())
}

func TestKilogramsToTonnes(t *testing.T) {
	assert.Equal(t, "1.2", KilogramsToTonnes(decimal.NewFromInt(1200)).String())
}
