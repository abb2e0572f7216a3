package hashing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRing_Get_Is_Stable(t *testing.T) {
	req := require.New(t)
	ring := NewRing(16)
	ring.Add("shard-0")
	ring.Add("shard-1")
	ring.Add("shard-2")

	key := uuid.NewString()
	first := ring.Get(key)
	req.NotEmpty(first)
	for range 50 {
		req.Equal(first, ring.Get(key))
	}
}

func TestRing_Spreads_Keys(t *testing.T) {
	req := require.New(t)
	ring := NewRing(16)
	ring.Add("shard-0")
	ring.Add("shard-1")
	ring.Add("shard-2")
	ring.Add("shard-3")

	hits := map[string]int{}
	for range 500 {
		hits[ring.Get(uuid.NewString())]++
	}

	// With 500 random keys every shard should see some traffic.
	req.Len(hits, 4)
}

func TestRing_Empty_Returns_Nothing(t *testing.T) {
	require.Empty(t, NewRing(16).Get("anything"))
}
