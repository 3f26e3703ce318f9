package auth

import "context"

// UserStore is the user-management collaborator. The auth flow only reads
// from it; mutations happen through the admin surface.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, u *User) error
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)
	UpdateStatus(ctx context.Context, id string, status string) (*User, error)
}

// SessionStore persists issued sessions keyed by token. The Service is the
// single writer; every other component only reads.
//
// Find returns (nil, nil) both when nothing is stored under the token and
// when the stored payload cannot be decoded: corrupt data degrades to "no
// session" rather than an error. Delete is idempotent.
type SessionStore interface {
	Save(ctx context.Context, sess *Session) error
	Find(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
}
