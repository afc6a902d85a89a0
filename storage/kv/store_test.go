package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "a", []byte("1")))
		v, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)
		assert.Equal(t, []string{"a"}, s.Keys())

		require.NoError(t, s.Delete(ctx, "a"))
		_, err = s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("values are copied", func(t *testing.T) {
		in := []byte("abc")
		require.NoError(t, s.Set(ctx, "b", in))
		in[0] = 'X'
		out, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(out))
		out[1] = 'Y'
		again, _ := s.Get(ctx, "b")
		assert.Equal(t, "abc", string(again))
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s, err := NewRedisStore(db, "helios:")
	require.NoError(t, err)

	t.Run("get existing", func(t *testing.T) {
		mock.ExpectGet("helios:xp:0xabc").SetVal(`{"totalXP":10}`)
		v, err := s.Get(ctx, "xp:0xabc")
		require.NoError(t, err)
		assert.Equal(t, `{"totalXP":10}`, string(v))
	})

	t.Run("get missing maps redis.Nil", func(t *testing.T) {
		mock.ExpectGet("helios:xp:0xdef").RedisNil()
		_, err := s.Get(ctx, "xp:0xdef")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get error is wrapped", func(t *testing.T) {
		mock.ExpectGet("helios:k").SetErr(errors.New("conn reset"))
		_, err := s.Get(ctx, "k")
		assert.ErrorContains(t, err, "conn reset")
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("set", func(t *testing.T) {
		mock.ExpectSet("helios:k", []byte("v"), 0).SetVal("OK")
		assert.NoError(t, s.Set(ctx, "k", []byte("v")))
	})

	t.Run("delete", func(t *testing.T) {
		mock.ExpectDel("helios:k").SetVal(1)
		assert.NoError(t, s.Delete(ctx, "k"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = NewRedisStore(nil, "")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	c := NewRedisClient(RedisConfig{Addr: "127.0.0.1:6379", DB: 2})
	defer c.Close()
	var _ redis.Cmdable = c
	assert.Equal(t, 2, c.Options().DB)
}
