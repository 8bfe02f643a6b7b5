package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-workorder-api/pkg/config"
)

func TestNewRedisPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	host, port, ok := strings.Cut(srv.Addr(), ":")
	require.True(t, ok)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{Host: host, Port: portNum})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	srv.CheckGet(t, "k", "v")
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	host, port, _ := strings.Cut(srv.Addr(), ":")
	portNum, _ := strconv.Atoi(port)
	srv.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{Host: host, Port: portNum})
	require.Error(t, err)
}
