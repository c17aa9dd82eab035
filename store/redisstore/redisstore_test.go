/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-admitgate/log/logtest"
	"github.com/acronis/go-admitgate/store"
)

type RedisStoreTestSuite struct {
	suite.Suite
	server *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &RedisStoreTestSuite{})
}

func (s *RedisStoreTestSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.server.Addr()})
	s.store = New(s.client)
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *RedisStoreTestSuite) TestGetAbsentKey() {
	val, found, err := s.store.Get(context.Background(), "rate_limit:A:60000")
	s.Require().NoError(err)
	s.Require().False(found)
	s.Require().Empty(val)
}

func (s *RedisStoreTestSuite) TestPutAndGet() {
	ctx := context.Background()
	const key = "rate_limit:A:60000"
	s.Require().NoError(s.store.Put(ctx, key, "[1741608000000]", 60*time.Second))

	val, found, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Require().Equal("[1741608000000]", val)
	s.Require().Equal(60*time.Second, s.server.TTL(key))
}

func (s *RedisStoreTestSuite) TestPutExpires() {
	ctx := context.Background()
	const key = "batch:A:29026800:60000"
	s.Require().NoError(s.store.Put(ctx, key, "1", time.Minute))

	s.server.FastForward(time.Minute - time.Second)
	_, found, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Require().True(found)

	s.server.FastForward(time.Second)
	_, found, err = s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Require().False(found)
}

func (s *RedisStoreTestSuite) TestPutWithoutExpiration() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "k", "v", 0))
	s.Require().Equal(time.Duration(0), s.server.TTL("k"))
}

func (s *RedisStoreTestSuite) TestNegativeTTL() {
	s.Require().EqualError(s.store.Put(context.Background(), "k", "v", -time.Second), "ttl should be >= 0, got -1s")
}

func (s *RedisStoreTestSuite) TestServerUnavailable() {
	ctx := context.Background()
	s.server.Close()

	_, _, err := s.store.Get(ctx, "k")
	s.Require().ErrorIs(err, store.ErrUnavailable)
	s.Require().ErrorIs(s.store.Put(ctx, "k", "v", time.Second), store.ErrUnavailable)
}

func (s *RedisStoreTestSuite) TestServerError() {
	s.server.SetError("ERR internal failure")
	_, _, err := s.store.Get(context.Background(), "k")
	s.Require().ErrorIs(err, store.ErrUnavailable)
}

func TestConnect(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := NewDefaultConfig()
	cfg.Address = server.Addr()

	logger := logtest.NewRecorder()
	rs, err := Connect(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, rs.Close()) }()
	require.Empty(t, logger.Entries())
}

func TestConnect_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	cfg := NewDefaultConfig()
	cfg.Address = addr
	cfg.Ping.RetryAttempts = 2
	cfg.Ping.RetryInitialInterval = 0

	logger := logtest.NewRecorder()
	_, err := Connect(context.Background(), cfg, logger)
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.Len(t, logger.Entries(), 2, "a warning is expected before each retry")
}

func TestNewClient_WithDNSServers(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := NewDefaultConfig()
	cfg.Address = server.Addr()
	cfg.DNSServers = []string{"127.0.0.1:1"} // Never queried for an IP literal address.

	client := NewClient(cfg)
	defer func() { require.NoError(t, client.Close()) }()
	require.NoError(t, client.Ping(context.Background()).Err())
}
