package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const profilesCollection = "profiles"

// ProfileRepository stores profiles keyed by identity id.
type ProfileRepository struct {
	coll *mongo.Collection
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profilesCollection)}
}

type mongoProfile struct {
	ID              string  `bson:"_id"`
	Name            *string `bson:"name,omitempty"`
	Surname         *string `bson:"surname,omitempty"`
	Role            string  `bson:"role"`
	ResponsibleName string  `bson:"responsible_name"`
	Email           string  `bson:"email"`
	PhotoURL        *string `bson:"photo_url,omitempty"`
	JobTitle        *string `bson:"job_title,omitempty"`
	Function        *string `bson:"function,omitempty"`
}

func toMongoProfile(p *domain.Profile) mongoProfile {
	return mongoProfile{
		ID:              p.ID,
		Name:            p.Name,
		Surname:         p.Surname,
		Role:            string(p.Role),
		ResponsibleName: p.ResponsibleName,
		Email:           p.Email,
		PhotoURL:        p.PhotoURL,
		JobTitle:        p.JobTitle,
		Function:        p.Function,
	}
}

func (m mongoProfile) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:              m.ID,
		Name:            m.Name,
		Surname:         m.Surname,
		Role:            domain.Role(m.Role),
		ResponsibleName: m.ResponsibleName,
		Email:           m.Email,
		PhotoURL:        m.PhotoURL,
		JobTitle:        m.JobTitle,
		Function:        m.Function,
	}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mp mongoProfile
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&mp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return mp.toDomain(), nil
}

func (r *ProfileRepository) Insert(ctx context.Context, p *domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toMongoProfile(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert profile %s: %w", p.ID, domain.ErrUserExists)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": string(role)}})
	if err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
