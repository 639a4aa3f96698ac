package auth

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Requester is the authenticated caller of a mutating operation.
type Requester struct {
	UserID string
	Role   string
}

func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// CanModify is the authorization gate for reservation mutations: the original
// owner or an administrator, nobody else.
func CanModify(ownerID string, requester Requester) bool {
	return requester.IsAdmin() || (requester.UserID != "" && requester.UserID == ownerID)
}
