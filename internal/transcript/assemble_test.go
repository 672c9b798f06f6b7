package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{" hello", "world.", "\nfrom", "buddy"})
	require.Equal(t, "hello world. from buddy", got)
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble(nil))
}

func TestAssembleSkipsWhitespaceOnlySegments(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{"  ", "\n\t", "hello"})
	require.Equal(t, "hello", got)
}

func TestAssembleIdempotentForNormalizedOutput(t *testing.T) {
	t.Parallel()

	first := Assemble([]string{"What's  the weather", "like today?"})
	require.Equal(t, first, Assemble([]string{first}))
}

func TestCollectorPrefersFinals(t *testing.T) {
	t.Parallel()

	var c Collector
	c.Add("what's the", false)
	c.Add("What's the weather", true)
	c.Add("like", false)
	c.Add("like today?", true)
	c.Add("", true)

	require.Equal(t, []string{"What's the weather", "like today?"}, c.Segments())
	require.Equal(t, "What's the weather like today?", Assemble(c.Segments()))
}

func TestCollectorFallsBackToInterim(t *testing.T) {
	t.Parallel()

	var c Collector
	require.Empty(t, c.Segments())

	c.Add("tell me", false)
	c.Add("tell me a joke", false)
	require.Equal(t, []string{"tell me a joke"}, c.Segments())
}
