package extractor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingExtractor records how it was constructed and invoked.
type countingExtractor struct {
	id    int
	calls atomic.Int64
}

func (c *countingExtractor) VerifyAndExtract(context.Context, []byte, map[string]string) (string, error) {
	c.calls.Add(1)
	return "sha256:0000000000000000000000000000000000000000000000000000000000000000", nil
}

func TestRegistryInstanceReuse(t *testing.T) {
	var constructed atomic.Int64
	reg := NewRegistry()
	reg.Register("test", func() Extractor {
		return &countingExtractor{id: int(constructed.Add(1))}
	})

	first, err := reg.Instance("test")
	require.NoError(t, err)
	second, err := reg.Instance("test")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), constructed.Load())
}

func TestRegistryUnsupportedType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Factory("foo")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.ErrorContains(t, err, `"foo"`)

	_, err = reg.Instance("foo")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistryConcurrentInstance(t *testing.T) {
	var constructed atomic.Int64
	reg := NewRegistry()
	reg.Register("test", func() Extractor {
		return &countingExtractor{id: int(constructed.Add(1))}
	})

	const goroutines = 32
	instances := make([]Extractor, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			instance, err := reg.Instance("test")
			assert.NoError(t, err)
			instances[i] = instance
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), constructed.Load(), "factory must run at most once per type")
	for _, instance := range instances {
		assert.Same(t, instances[0], instance)
	}
}

func TestRegistryIsolatesTypes(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", func() Extractor { return &countingExtractor{} })
	reg.Register("b", func() Extractor { return &countingExtractor{} })

	a, err := reg.Instance("a")
	require.NoError(t, err)
	b, err := reg.Instance("b")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Types())
}

func TestRegistryReRegisterKeepsInstance(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test", func() Extractor { return &countingExtractor{id: 1} })

	first, err := reg.Instance("test")
	require.NoError(t, err)

	// Re-registering replaces the factory, but the one-instance-per-type
	// invariant keeps the already-built instance.
	reg.Register("test", func() Extractor { return &countingExtractor{id: 2} })
	second, err := reg.Instance("test")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
