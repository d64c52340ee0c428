package health

import (
	"context"
	"errors"
	"testing"

	"direct_message_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_Check(t *testing.T) {
	logger.SetNewNop()
	s := NewServer("chat_service")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Status())

	var storeErr error
	s.AddProbe("store", func(ctx context.Context) error { return storeErr })

	assert.True(t, s.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Status())

	storeErr = errors.New("down")
	assert.False(t, s.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Status())
}
