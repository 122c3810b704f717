package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/service"
)

// CacheGET serves repeated GET responses from redis for ttl. Export
// snapshots are the target: they are expensive to assemble and tolerant
// of short staleness. The cached body is replayed with the stored
// content type; anything but a 200 is never cached.
func CacheGET(client *redis.Client, metrics *service.MetricsService, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != "GET" {
			c.Next()
			return
		}
		key := "resp:" + c.Request.URL.RequestURI()

		cached, err := client.Get(c.Request.Context(), key).Bytes()
		if err == nil {
			contentType, typeErr := client.Get(c.Request.Context(), key+":type").Result()
			if typeErr != nil {
				contentType = "application/octet-stream"
			}
			metrics.RecordCacheOperation(true)
			c.Data(200, contentType, cached)
			c.Abort()
			return
		}
		metrics.RecordCacheOperation(false)

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		if recorder.Status() != 200 || len(recorder.body) == 0 {
			return
		}
		ctx := c.Request.Context()
		if err := client.Set(ctx, key, recorder.body, ttl).Err(); err != nil {
			logger.Warn("failed to cache response", zap.String("key", key), zap.Error(err))
			return
		}
		if err := client.Set(ctx, key+":type", recorder.Header().Get("Content-Type"), ttl).Err(); err != nil {
			logger.Warn("failed to cache content type", zap.String("key", key), zap.Error(err))
		}
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	body []byte
}

func (r *bodyRecorder) Write(data []byte) (int, error) {
	r.body = append(r.body, data...)
	return r.ResponseWriter.Write(data)
}
