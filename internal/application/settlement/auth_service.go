package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/session"
	"github.com/erp/settlement/internal/infrastructure/upstream"
)

// Login outcomes recorded in metrics.
const (
	LoginSuccess     = "success"
	LoginRejected    = "rejected"
	LoginUnavailable = "unavailable"
)

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	ProbeEndpoint string        // read-only endpoint used to check credentials
	Timeout       time.Duration // timeout of the probe call
}

// LoginRecorder receives login outcomes. *telemetry.UpstreamMetrics
// satisfies it.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, outcome string)
}

// AuthService validates credentials against the webservice and manages
// dashboard sessions.
type AuthService struct {
	upstream Upstream
	sessions *session.Manager
	config   AuthServiceConfig
	recorder LoginRecorder
	logger   *zap.Logger
}

// NewAuthService creates a new authentication service. recorder may be nil.
func NewAuthService(up Upstream, sessions *session.Manager, config AuthServiceConfig, recorder LoginRecorder, logger *zap.Logger) *AuthService {
	return &AuthService{
		upstream: up,
		sessions: sessions,
		config:   config,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *AuthService) record(ctx context.Context, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(ctx, outcome)
	}
}

// Probe checks username and password by calling the probe endpoint with
// them. It returns the Authorization header value that worked.
func (s *AuthService) Probe(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", settlement.ValidationError("Username and password required")
	}

	credential := upstream.BasicAuth(username, password)
	_, err := s.upstream.GetWithTimeout(ctx, s.config.ProbeEndpoint, credential, s.config.Timeout)
	switch {
	case err == nil:
		return credential, nil
	case upstream.IsUnauthorized(err):
		logger.LOr(ctx, s.logger).Warn("Upstream rejected credentials", zap.String("username", username))
		return "", settlement.ErrInvalidCredentials
	default:
		logger.LOr(ctx, s.logger).Error("Login probe failed",
			zap.String("username", username),
			zap.String("endpoint", s.config.ProbeEndpoint),
			zap.Int("status", upstream.StatusCode(err)),
			zap.Error(err))
		return "", settlement.ErrUpstreamUnavailable.WithCause(err)
	}
}

// Login validates the credentials and opens a session holding them.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	logger.LOr(ctx, s.logger).Info("Login attempt", zap.String("username", input.Username))

	credential, err := s.Probe(ctx, input.Username, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidCredentials):
			s.record(ctx, LoginRejected)
		case errors.Is(err, settlement.ErrUpstreamUnavailable):
			s.record(ctx, LoginUnavailable)
		}
		return nil, err
	}

	token, sess, err := s.sessions.Create(ctx, input.Username, credential)
	if err != nil {
		logger.LOr(ctx, s.logger).Error("Failed to create session", zap.Error(err))
		return nil, err
	}
	s.record(ctx, LoginSuccess)
	return &LoginResult{Token: token, Username: sess.Username}, nil
}

// Logout destroys the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		logger.LOr(ctx, s.logger).Error("Failed to destroy session", zap.Error(err))
		return settlement.OperationFailed("Logout failed", err)
	}
	return nil
}
