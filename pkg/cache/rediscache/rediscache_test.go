package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sbeams "github.com/systemsbiology/sbeams-core"
	"github.com/systemsbiology/sbeams-core/pkg/cache/rediscache"
)

func TestKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	k := sbeams.CacheKey{User: "edeutsch", WorkGroup: "Array_user", TableGroup: "MicroarrayCore"}

	c := rediscache.New(client)
	assert.Equal(t, "sbeams:privilege:edeutsch:Array_user:MicroarrayCore", c.Key(k))

	c = rediscache.New(client, rediscache.WithPrefix("dev:"))
	assert.Equal(t, "dev:edeutsch:Array_user:MicroarrayCore", c.Key(k))
}

func TestKey_SeparatorInNames(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	c := rediscache.New(client)

	a := sbeams.CacheKey{User: "a:b", WorkGroup: "c", TableGroup: "MicroarrayCore"}
	b := sbeams.CacheKey{User: "a", WorkGroup: "b:c", TableGroup: "MicroarrayCore"}
	assert.NotEqual(t, c.Key(a), c.Key(b))
	assert.Equal(t, "sbeams:privilege:a%3Ab:c:MicroarrayCore", c.Key(a))

	pct := sbeams.CacheKey{User: "a%3Ab", WorkGroup: "c", TableGroup: "MicroarrayCore"}
	assert.NotEqual(t, c.Key(a), c.Key(pct))
}

func TestUnreachableServerIsAMiss(t *testing.T) {
	// Nothing listens on port 1.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := rediscache.New(client, rediscache.WithTimeout(200*time.Millisecond))

	k := sbeams.CacheKey{User: "u", WorkGroup: "g", TableGroup: "t"}
	c.Set(k, sbeams.PrivilegeDataWriter)
	_, ok := c.Get(k)
	assert.False(t, ok)

	_, err := rediscache.Dial(context.Background(), "127.0.0.1:1", "", 0)
	require.Error(t, err)
}
