package auth

import (
	"time"

	authutil "github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/cache"
	"github.com/sahilchouksey/lms-api/utils/metrics"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"gorm.io/gorm"
)

// AuthHandler handles the token lifecycle: login, refresh, logout, password
// flows and the profile endpoints.
type AuthHandler struct {
	db          *gorm.DB
	jwtManager  *authutil.JWTManager
	principals  *authutil.PrincipalStore
	revocations authutil.RevocationSet
	bruteForce  *middleware.BruteForceProtection
	redisCache  *cache.RedisCache
	metrics     *metrics.Metrics
	resetExpiry time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	db *gorm.DB,
	jwtManager *authutil.JWTManager,
	revocations authutil.RevocationSet,
	bruteForce *middleware.BruteForceProtection,
	redisCache *cache.RedisCache,
	m *metrics.Metrics,
	resetExpiry time.Duration,
) *AuthHandler {
	return &AuthHandler{
		db:          db,
		jwtManager:  jwtManager,
		principals:  authutil.NewPrincipalStore(db),
		revocations: revocations,
		bruteForce:  bruteForce,
		redisCache:  redisCache,
		metrics:     m,
		resetExpiry: resetExpiry,
	}
}

// PrincipalResponse is the principal snapshot returned by login and profile
// endpoints. Permissions ride alongside so clients can build their UI
// without decoding the token.
type PrincipalResponse struct {
	ID          uint     `json:"id"`
	Type        string   `json:"type"`
	TenantID    *uint    `json:"tenant_id,omitempty"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}
