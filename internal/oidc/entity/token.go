package entity

import "time"

// Expiring is implemented by every record the sweeper can remove.
type Expiring interface {
	Identifier() string
	Expiry() time.Time
}

// RefreshSession is a persisted opaque refresh token.
type RefreshSession struct {
	Token     string    `db:"token" bson:"_id" json:"token"`
	UserID    int64     `db:"user_id" bson:"user_id" json:"user_id"`
	ClientID  string    `db:"client_id" bson:"client_id" json:"client_id"`
	ExpiresAt time.Time `db:"expires_at" bson:"expires_at" json:"expires_at"`
}

func (r RefreshSession) Identifier() string { return r.Token }
func (r RefreshSession) Expiry() time.Time  { return r.ExpiresAt }

// AuthorizationCode is a one-time code issued by the authorize endpoint.
type AuthorizationCode struct {
	Code        string    `db:"code" bson:"_id" json:"code"`
	ClientID    string    `db:"client_id" bson:"client_id" json:"client_id"`
	UserID      int64     `db:"user_id" bson:"user_id" json:"user_id"`
	RedirectURI string    `db:"redirect_uri" bson:"redirect_uri" json:"redirect_uri"`
	Scope       string    `db:"scope" bson:"scope" json:"scope"`
	ExpiresAt   time.Time `db:"expires_at" bson:"expires_at" json:"expires_at"`
}

func (c AuthorizationCode) Identifier() string { return c.Code }
func (c AuthorizationCode) Expiry() time.Time  { return c.ExpiresAt }

// TokenHandle is the server-side half of a reference access token.
type TokenHandle struct {
	Handle    string    `db:"handle" bson:"_id" json:"handle"`
	ClientID  string    `db:"client_id" bson:"client_id" json:"client_id"`
	UserID    int64     `db:"user_id" bson:"user_id" json:"user_id"`
	TokenType string    `db:"token_type" bson:"token_type" json:"token_type"`
	ExpiresAt time.Time `db:"expires_at" bson:"expires_at" json:"expires_at"`
}

func (h TokenHandle) Identifier() string { return h.Handle }
func (h TokenHandle) Expiry() time.Time  { return h.ExpiresAt }

// Ref is an identifier and expiry with no payload, as returned by stores that
// index expiry separately from the record body.
type Ref struct {
	ID        string
	ExpiresAt time.Time
}

func (r Ref) Identifier() string { return r.ID }
func (r Ref) Expiry() time.Time  { return r.ExpiresAt }
