package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller extracted from a verified token. Handlers read
// it instead of touching Gin context keys directly; buyers and sellers
// are distinguished by role, never by separate endpoints.
type Identity interface {
	// UserID is the subject claim.
	UserID() uuid.UUID
	// Email is the account email claim, empty when the token carried none.
	// Notifications key off this; a missing email only suppresses them.
	Email() string
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	email         string
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }
func (i *identity) Email() string     { return i.email }
func (i *identity) Roles() []string   { return i.roles }

func (i *identity) HasRole(role string) bool {
	return slices.Contains(i.roles, role)
}

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity reads the identity the auth middleware stored on the
// request. Anonymous requests get an unauthenticated identity rather
// than nil.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{}
	}
	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	var emailValue string
	if email, ok := c.Get(ContextEmailKey); ok {
		emailValue, _ = email.(string)
	}

	return &identity{
		userID:        uid,
		email:         emailValue,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity aborts with 401 and returns nil when the request is
// unauthenticated. Callers must check for nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
