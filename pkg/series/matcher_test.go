package series

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	n, err := Parse("  cpu   host=a  dc=x ")
	require.NoError(t, err)
	assert.Equal(t, "cpu", n.Metric)
	assert.Equal(t, map[string]string{"host": "a", "dc": "x"}, n.Tags)
	assert.Equal(t, "cpu dc=x host=a", n.String())

	canon, err := Canonical("mem")
	require.NoError(t, err)
	assert.Equal(t, "mem", canon)
}

func TestParse_Errors(t *testing.T) {
	for _, s := range []string{"", "   ", "host=a", "cpu host", "cpu =a", "cpu host="} {
		_, err := Parse(s)
		assert.Error(t, err, "input %q", s)
	}
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestMatcher_AddIsStable(t *testing.T) {
	m := NewMatcher()

	id1, err := m.Add("cpu host=a dc=x")
	require.NoError(t, err)
	id2, err := m.Add("cpu dc=x host=a")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, m.Len())

	// same id in any process
	id3, err := ID("cpu  dc=x   host=a")
	require.NoError(t, err)
	assert.Equal(t, id1, id3)

	name, ok := m.Name(id1)
	require.True(t, ok)
	assert.Equal(t, "cpu dc=x host=a", name)

	_, ok = m.Name(id1 + 1)
	assert.False(t, ok)

	_, err = m.Add("")
	assert.Error(t, err)
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher()
	for _, s := range []string{"cpu host=b dc=x", "cpu host=a dc=x", "cpu host=c dc=y", "mem host=a"} {
		_, err := m.Add(s)
		require.NoError(t, err)
	}
	id := func(s string) uint64 {
		id, ok := m.Lookup(s)
		require.True(t, ok)
		return id
	}

	tests := []struct {
		name   string
		metric string
		where  map[string][]string
		want   []uint64
	}{
		{"metric only", "cpu", nil, []uint64{id("cpu dc=x host=a"), id("cpu dc=x host=b"), id("cpu dc=y host=c")}},
		{"one value", "cpu", map[string][]string{"dc": {"y"}}, []uint64{id("cpu dc=y host=c")}},
		{"value set", "cpu", map[string][]string{"host": {"a", "c"}}, []uint64{id("cpu dc=x host=a"), id("cpu dc=y host=c")}},
		{"two keys", "cpu", map[string][]string{"host": {"a", "c"}, "dc": {"x"}}, []uint64{id("cpu dc=x host=a")}},
		{"no such tag", "cpu", map[string][]string{"rack": {"1"}}, nil},
		{"no such metric", "disk", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.metric, tt.where)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []uint64{id("cpu dc=x host=a"), id("mem host=a")}, m.MatchTags(map[string][]string{"host": {"a"}}))
	assert.Len(t, m.All(), 4)
}

func TestMatcher_Concurrent(t *testing.T) {
	m := NewMatcher()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := m.Add("cpu host=a")
				assert.NoError(t, err)
				m.Match("cpu", nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Len())
	assert.Len(t, m.Match("cpu", nil), 1)
}

func TestChain(t *testing.T) {
	global := NewMatcher()
	local := NewMatcher()

	gid, err := global.Add("cpu host=a")
	require.NoError(t, err)
	lid, err := local.Add("cpu dc=x")
	require.NoError(t, err)

	chain := Chain{local, nil, global}

	name, ok := chain.Name(gid)
	require.True(t, ok)
	assert.Equal(t, "cpu host=a", name)

	name, ok = chain.Name(lid)
	require.True(t, ok)
	assert.Equal(t, "cpu dc=x", name)

	_, ok = chain.Name(12345)
	assert.False(t, ok)
}
