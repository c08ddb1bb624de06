// Package profile reads and writes user role records in the "users"
// collection of the document store.
package profile

import (
	"context"
	"time"

	"frootex/backend/internal/docstore"
	"frootex/backend/internal/profile/domain"
)

const collection = "users"

// Store persists profiles through the document store.
type Store struct {
	docs docstore.Store
}

// NewStore returns a Store over docs.
func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Get returns the profile for principal id, or nil if none exists. An
// unrecognized stored role comes back as RoleUnknown rather than an error.
func (s *Store) Get(ctx context.Context, id string) (*domain.Profile, error) {
	doc, err := s.docs.GetDocument(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return fromDocument(id, doc), nil
}

// Create validates and writes the profile. Used for first-time writes only;
// the document store overwrites, so callers that may race a prior signup use
// EnsureCreated instead.
func (s *Store) Create(ctx context.Context, p *domain.Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.docs.SetDocument(ctx, collection, p.ID, toDocument(p))
}

// EnsureCreated writes the profile only when none exists for p.ID yet.
// A pre-existing profile from a prior signup is never overwritten. Returns
// whether a write happened.
func (s *Store) EnsureCreated(ctx context.Context, p *domain.Profile) (bool, error) {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if err := s.Create(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

func toDocument(p *domain.Profile) docstore.Document {
	doc := docstore.Document{
		"uid":          p.ID,
		"role":         string(p.Role),
		"signupMethod": string(p.SignupMethod),
		"createdAt":    p.CreatedAt.Format(time.RFC3339),
	}
	if p.Name != "" {
		doc["name"] = p.Name
	}
	if p.Email != "" {
		doc["email"] = p.Email
	}
	if p.Phone != "" {
		doc["phone"] = p.Phone
	}
	return doc
}

func fromDocument(id string, doc docstore.Document) *domain.Profile {
	p := &domain.Profile{
		ID:           id,
		Name:         str(doc, "name"),
		Email:        str(doc, "email"),
		Phone:        str(doc, "phone"),
		Role:         domain.ParseRole(str(doc, "role")),
		SignupMethod: domain.SignupMethod(str(doc, "signupMethod")),
	}
	if t, err := time.Parse(time.RFC3339, str(doc, "createdAt")); err == nil {
		p.CreatedAt = t
	}
	return p
}

func str(doc docstore.Document, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
