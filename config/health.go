package config

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
)

type probe struct {
	name  string
	check func(ctx context.Context) error
}

// HealthChecker pings every external dependency the server was started with.
type HealthChecker struct {
	probes []probe
}

// NewHealthChecker builds probes for the given dependencies. db is nil when
// the store does not use SQL and is then left out of the report.
func NewHealthChecker(driver string, db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client) *HealthChecker {
	h := &HealthChecker{}
	if db != nil {
		h.probes = append(h.probes, probe{name: driver, check: db.PingContext})
	}
	h.probes = append(h.probes,
		probe{name: "rabbitmq", check: func(context.Context) error {
			if amqpConn == nil || amqpConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}},
		probe{name: "mqtt", check: func(context.Context) error {
			if mqttClient == nil || !mqttClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}},
	)
	return h
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	healthy := true
	report := make(gin.H, len(h.probes))
	for _, p := range h.probes {
		if err := p.check(c.Request.Context()); err != nil {
			healthy = false
			report[p.name] = gin.H{"status": "down", "error": err.Error()}
			continue
		}
		report[p.name] = gin.H{"status": "up"}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "dependencies": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "dependencies": report})
}
