package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerceIdentity(t *testing.T) {
	require := require.New(t)
	for _, d := range []Domain{IntegerDomain{}, TextDomain{}, BooleanDomain{}, FloatDomain{}} {
		got, ok := Coerce(d, d)
		require.True(ok)
		require.True(got.Equal(d))
	}
}

func TestCoerceCommutative(t *testing.T) {
	require := require.New(t)
	a, b := IntegerDomain{}, FloatDomain{}
	ab, ok1 := Coerce(a, b)
	ba, ok2 := Coerce(b, a)
	require.True(ok1)
	require.True(ok2)
	require.True(ab.Equal(ba))
}

func TestCoerceUntypedAbsorbed(t *testing.T) {
	require := require.New(t)
	got, ok := Coerce(UntypedDomain{}, TextDomain{})
	require.True(ok)
	require.True(got.Equal(TextDomain{}))
}

func TestRecordDomainEqual(t *testing.T) {
	require := require.New(t)
	a := RecordDomain{Fields: []RecordField{{"code", TextDomain{}}, {"id", IntegerDomain{}}}}
	b := RecordDomain{Fields: []RecordField{{"code", TextDomain{}}, {"id", IntegerDomain{}}}}
	require.True(a.Equal(b))
}
