package syn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIdentifierAndFunction(t *testing.T) {
	require := require.New(t)
	s, err := Parse("department")
	require.NoError(err)
	id, ok := s.(Identifier)
	require.True(ok)
	require.Equal("department", id.Text)

	s, err = Parse("count(school)")
	require.NoError(err)
	fn, ok := s.(Function)
	require.True(ok)
	require.Equal("count", fn.Identifier)
	require.Len(fn.Args, 1)
}

func TestParseComposeAndFilter(t *testing.T) {
	require := require.New(t)
	s, err := Parse("school.department?code='eng'")
	require.NoError(err)
	f, ok := s.(Filter)
	require.True(ok)
	compose, ok := f.Base.(Compose)
	require.True(ok)
	require.Equal("school", compose.Left.(Identifier).Text)
	require.Equal("department", compose.Right.(Identifier).Text)
	cmp, ok := f.Predicate.(Operator)
	require.True(ok)
	require.Equal("=", cmp.Symbol)
}

func TestParseOperatorPrecedence(t *testing.T) {
	require := require.New(t)
	s, err := Parse("1+2*3")
	require.NoError(err)
	op, ok := s.(Operator)
	require.True(ok)
	require.Equal("+", op.Symbol)
	_, ok = op.Left.(Integer)
	require.True(ok)
	rhs, ok := op.Right.(Operator)
	require.True(ok)
	require.Equal("*", rhs.Symbol)
}

func TestParseSelectAndProject(t *testing.T) {
	require := require.New(t)
	s, err := Parse("department^school{code}")
	require.NoError(err)
	sel, ok := s.(Select)
	require.True(ok)
	proj, ok := sel.Base.(Project)
	require.True(ok)
	require.Equal("department", proj.Base.(Identifier).Text)
	require.Equal("school", proj.Kernel.(Identifier).Text)
	require.Len(sel.Record.(Record).Elements, 1)
}

func TestParseDirectionPostfix(t *testing.T) {
	require := require.New(t)
	s, err := Parse("name-")
	require.NoError(err)
	op, ok := s.(Operator)
	require.True(ok)
	require.Equal("dir-", op.Symbol)
}

func TestParseReferenceAndGroup(t *testing.T) {
	require := require.New(t)
	s, err := Parse("($x+1)")
	require.NoError(err)
	g, ok := s.(Group)
	require.True(ok)
	op, ok := g.Arm.(Operator)
	require.True(ok)
	ref, ok := op.Left.(Reference)
	require.True(ok)
	require.Equal("x", ref.Identifier)
}

func TestParseRoundTrip(t *testing.T) {
	require := require.New(t)
	sources := []string{
		"department",
		"count(school)",
		"school.department",
		"1+2*3",
		"code='eng'",
		"department^school{code}",
		"name-",
		"$x",
		"[1,2,3]",
	}
	for _, src := range sources {
		first, err := Parse(src)
		require.NoError(err, src)
		rendered := Render(first)
		second, err := Parse(rendered)
		require.NoError(err, rendered)
		require.Equal(first, second, "round-trip mismatch for %q -> %q", src, rendered)
	}
}

func TestParseSyntaxErrorUnterminatedString(t *testing.T) {
	require := require.New(t)
	_, err := Parse("'abc")
	require.Error(err)
}

func TestParseSyntaxErrorTrailingInput(t *testing.T) {
	require := require.New(t)
	_, err := Parse("school)")
	require.Error(err)
}
