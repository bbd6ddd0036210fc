package fn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/core/domain"
)

func TestLookupComparisonFormula(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	f, err := r.Lookup("=", 2)
	require.NoError(err)
	d, err := f.InferDomain([]domain.Domain{domain.IntegerDomain{}, domain.IntegerDomain{}})
	require.NoError(err)
	require.Equal(domain.BooleanDomain{}, d)
	require.Equal("(a = b)", f.Render([]string{"a", "b"}))
}

func TestLookupVariadicCount(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	f, err := r.Lookup("count", 0)
	require.NoError(err)
	require.Equal("COUNT(*)", f.Render(nil))

	f, err = r.Lookup("count", 1)
	require.NoError(err)
	require.Equal("COUNT(x)", f.Render([]string{"x"}))
}

func TestLookupMissingIsError(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	_, err := r.Lookup("nonexistent", 1)
	require.Error(err)
}

func TestRegisterCast(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	r.RegisterCast("cast_to_text", domain.TextDomain{})
	f, err := r.Lookup("cast_to_text", 1)
	require.NoError(err)
	require.Equal("CAST(x AS Text)", f.Render([]string{"x"}))
}
