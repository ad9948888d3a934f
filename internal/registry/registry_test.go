package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragserve/ragserve/internal/llm"
)

type stubRetrieval struct{ out string }

func (s stubRetrieval) GetContext(context.Context, string) (string, error) { return s.out, nil }

type stubPipeline struct{ out string }

func (s stubPipeline) Run(context.Context, []llm.Message, string) (string, error) {
	return s.out, nil
}

func TestRegistryLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("support", Entry{
		Retrieval: stubRetrieval{out: "ctx"},
		Pipeline:  stubPipeline{out: "answer"},
	}))

	assert.True(t, r.Has("support"))
	assert.False(t, r.Has("billing"))

	entry, err := r.Entry("support")
	require.NoError(t, err)

	got, err := entry.Retrieval.GetContext(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ctx", got)
}

func TestRegistryUnknownName(t *testing.T) {
	r := New()

	_, err := r.Entry("missing")
	assert.ErrorIs(t, err, ErrUnknownConfiguration)
}

func TestRegistryDuplicateName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("a", Entry{}))
	assert.Error(t, r.Register("a", Entry{}))
}

func TestRegistryNamesPreserveOrder(t *testing.T) {
	r := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, Entry{}))
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())

	// The returned slice is a copy; mutating it does not corrupt order.
	names := r.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())
}
