package trigger

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/observability"
	"github.com/ingestkit/ingestkit/secrets"
	"github.com/ingestkit/ingestkit/version"
)

// FireResponse is the body returned when a webhook firing is accepted.
// The run proceeds in the background; its outcome is reported through
// the job's notification channels.
type FireResponse struct {
	FireID  string `json:"fire_id"`
	Trigger string `json:"trigger"`
	Job     string `json:"job"`
}

// Server exposes webhook trigger endpoints plus a health endpoint.
// Routes are registered from the snapshot given at construction; run
// execution still loads a fresh snapshot per firing.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	invoker    JobInvoker
	env        config.Environment
	source     secrets.Source
	configRoot string
	log        *logger.Logger
}

// NewServer builds the webhook server for an environment's triggers.
func NewServer(addr string, invoker JobInvoker, snapshot *config.Snapshot, source secrets.Source, configRoot string) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:     gin.New(),
		invoker:    invoker,
		env:        snapshot.Environment,
		source:     source,
		configRoot: configRoot,
		log:        logger.Get("webhook"),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/health", s.handleHealth)

	for _, t := range snapshot.Triggers {
		if t.Type != config.TriggerWebhook || !t.IsEnabled() {
			continue
		}
		s.engine.POST(t.Webhook.Path, s.handleFire(t))
		s.log.Info("webhook trigger armed", logger.Fields(
			logger.FieldTrigger, t.Name,
			logger.FieldJob, t.Job,
			"path", t.Webhook.Path,
		))
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the route tree, used in tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("webhook server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	s.log.Info("webhook server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop drains the server with a 5 second deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleFire(t *config.TriggerDefinition) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authenticate(c, t.Webhook.Auth); err != nil {
			respondError(c, err)
			return
		}

		fireID := uuid.NewString()
		runCtx := context.WithoutCancel(c.Request.Context())
		go func() {
			results, err := Fire(runCtx, s.invoker, s.env, t)
			if err != nil {
				s.log.Error("webhook firing failed", logger.Fields(
					logger.FieldTrigger, t.Name,
					"fire_id", fireID,
					logger.FieldError, err.Error(),
				))
				return
			}
			for _, r := range results {
				s.log.Info("webhook run finished", logger.Fields(
					logger.FieldTrigger, t.Name,
					"fire_id", fireID,
					logger.FieldRunID, r.RunID,
					logger.FieldStatus, string(r.Status),
				))
			}
		}()

		c.JSON(http.StatusAccepted, FireResponse{
			FireID:  fireID,
			Trigger: t.Name,
			Job:     t.Job,
		})
	}
}

// authenticate enforces the trigger's auth policy on the request.
func (s *Server) authenticate(c *gin.Context, auth config.WebhookAuth) error {
	switch auth.Type {
	case "", "none":
		return nil
	case "token":
		return s.checkToken(bearerToken(c), auth.TokenHash)
	case "jwt":
		return s.checkJWT(bearerToken(c), auth.SigningSecretKey)
	default:
		return errors.Unauthorized("unsupported auth type")
	}
}

func (s *Server) checkToken(token, hash string) error {
	if token == "" {
		return errors.Unauthorized("missing bearer token")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return errors.Unauthorized("invalid token")
	}
	return nil
}

func (s *Server) checkJWT(token, secretKey string) error {
	if token == "" {
		return errors.Unauthorized("missing bearer token")
	}
	signingSecret, ok := s.source.Lookup(secretKey)
	if !ok || signingSecret == "" {
		return errors.Internal(nil)
	}

	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("unexpected signing method")
		}
		return []byte(signingSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return errors.Unauthorized("invalid token")
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	health := observability.NewServiceHealth("ingestkit", version.Version)

	configCheck := observability.HealthFunc(func(ctx context.Context) observability.Health {
		if _, err := os.Stat(s.configRoot); err != nil {
			return observability.Health{
				Name: "config", Status: observability.HealthStatusDown, Message: err.Error(),
			}
		}
		return observability.Health{Name: "config", Status: observability.HealthStatusUp}
	})
	health.AddComponent(configCheck.CheckHealth(c.Request.Context()))

	status := http.StatusOK
	if health.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.ResponseFor(err))
}
