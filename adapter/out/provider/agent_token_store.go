// Package provider implements the Google-backed mail and calendar
// adapters plus OAuth token persistence.
package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/oauth2"

	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// OAuth Token Store
// =============================================================================

const collectionTokens = "oauth_tokens"

type tokenDocument struct {
	UserID       string    `bson:"_id"`
	AccessToken  string    `bson:"access_token"`
	RefreshToken string    `bson:"refresh_token"`
	TokenType    string    `bson:"token_type"`
	Expiry       time.Time `bson:"expiry"`
	Scopes       []string  `bson:"scopes"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// TokenStore persists per-user OAuth grants and enforces scope
// consistency: a stored grant whose scopes differ from the required set
// is deleted and the caller gets a re-auth error.
type TokenStore struct {
	collection     *mongo.Collection
	requiredScopes []string
}

func NewTokenStore(db *mongo.Database, requiredScopes []string) *TokenStore {
	return &TokenStore{
		collection:     db.Collection(collectionTokens),
		requiredScopes: requiredScopes,
	}
}

// Get returns the stored token for userID. Scope drift deletes the grant
// and returns a re-auth error so the user is forced to re-consent.
func (s *TokenStore) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	var doc tokenDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ReauthRequired("no stored credentials")
		}
		return nil, apperr.StoreError("get oauth token", err)
	}

	if !sameScopes(doc.Scopes, s.requiredScopes) {
		if err := s.Delete(ctx, userID); err != nil {
			return nil, err
		}
		return nil, apperr.ReauthRequired("stored scopes differ from required scopes")
	}

	return &oauth2.Token{
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		TokenType:    doc.TokenType,
		Expiry:       doc.Expiry,
	}, nil
}

// Save upserts the grant with the scope set it was issued for.
func (s *TokenStore) Save(ctx context.Context, userID string, token *oauth2.Token, scopes []string) error {
	doc := tokenDocument{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		Scopes:       scopes,
		UpdatedAt:    time.Now().UTC(),
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": userID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return apperr.StoreError("save oauth token", err)
	}
	return nil
}

// ListUserIDs returns every user with a stored grant. The scheduler uses
// this as the set of accounts it may act for.
func (s *TokenStore) ListUserIDs(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, apperr.StoreError("list oauth users", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			UserID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, apperr.StoreError("decode oauth user", err)
		}
		ids = append(ids, doc.UserID)
	}
	return ids, nil
}

func (s *TokenStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return apperr.StoreError("delete oauth token", err)
	}
	return nil
}

func sameScopes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i, s := range a {
		as[i] = strings.ToLower(s)
	}
	for i, s := range b {
		bs[i] = strings.ToLower(s)
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
