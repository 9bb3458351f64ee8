package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/imemory/server/internal/model"
)

const usersCollection = "users"

type userDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	Name                    string             `bson:"name"`
	Email                   string             `bson:"email"`
	PhoneNumber             *string            `bson:"phoneNumber,omitempty"`
	Password                string             `bson:"password"`
	IsEmailVerified         bool               `bson:"isEmailVerified"`
	IsPhoneVerified         bool               `bson:"isPhoneVerified"`
	EmailVerificationCode   *string            `bson:"emailVerificationCode"`
	PhoneVerificationCode   *string            `bson:"phoneVerificationCode"`
	VerificationCodeExpiry  *time.Time         `bson:"verificationCodeExpiry"`
	PasswordResetCode       *string            `bson:"passwordResetCode"`
	PasswordResetCodeExpiry *time.Time         `bson:"passwordResetCodeExpiry"`
	SMSNotificationsEnabled bool               `bson:"smsNotificationsEnabled"`
	Date                    time.Time          `bson:"date"`
	UpdatedAt               time.Time          `bson:"updatedAt"`
}

func toUserDocument(u *model.Identity) (*userDocument, error) {
	doc := &userDocument{
		Name:                    u.Name,
		Email:                   NormalizeEmail(u.Email),
		Password:                u.PasswordHash,
		IsEmailVerified:         u.IsEmailVerified,
		IsPhoneVerified:         u.IsPhoneVerified,
		EmailVerificationCode:   u.EmailVerificationCode,
		PhoneVerificationCode:   u.PhoneVerificationCode,
		VerificationCodeExpiry:  u.VerificationCodeExpiry,
		PasswordResetCode:       u.PasswordResetCode,
		PasswordResetCodeExpiry: u.PasswordResetCodeExpiry,
		SMSNotificationsEnabled: u.SMSNotificationsEnabled,
		Date:                    u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
	if u.PhoneNumber != "" {
		phone := u.PhoneNumber
		doc.PhoneNumber = &phone
	}
	if u.ID != "" {
		id, err := primitive.ObjectIDFromHex(u.ID)
		if err != nil {
			return nil, ErrNotFound
		}
		doc.ID = id
	}
	return doc, nil
}

func (d *userDocument) toModel() model.Identity {
	u := model.Identity{
		ID:                      d.ID.Hex(),
		Name:                    d.Name,
		Email:                   d.Email,
		PasswordHash:            d.Password,
		IsEmailVerified:         d.IsEmailVerified,
		IsPhoneVerified:         d.IsPhoneVerified,
		EmailVerificationCode:   d.EmailVerificationCode,
		PhoneVerificationCode:   d.PhoneVerificationCode,
		VerificationCodeExpiry:  utcPtr(d.VerificationCodeExpiry),
		PasswordResetCode:       d.PasswordResetCode,
		PasswordResetCodeExpiry: utcPtr(d.PasswordResetCodeExpiry),
		SMSNotificationsEnabled: d.SMSNotificationsEnabled,
		CreatedAt:               d.Date.UTC(),
		UpdatedAt:               d.UpdatedAt.UTC(),
	}
	if d.PhoneNumber != nil {
		u.PhoneNumber = *d.PhoneNumber
	}
	return u
}

type mongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo creates a MongoDB-backed UserRepo
func NewMongoUserRepo(db *mongo.Database) UserRepo {
	return &mongoUserRepo{coll: db.Collection(usersCollection)}
}

// Create inserts a new identity and assigns its ID
func (r *mongoUserRepo) Create(ctx context.Context, u *model.Identity) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = NormalizeEmail(u.Email)

	doc, err := toUserDocument(u)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user in mongo: %w", err)
	}
	u.ID = doc.ID.Hex()
	return nil
}

// GetByID retrieves a user by ID
func (r *mongoUserRepo) GetByID(ctx context.Context, id string) (model.Identity, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Identity{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

// GetByEmail retrieves a user by normalized email
func (r *mongoUserRepo) GetByEmail(ctx context.Context, email string) (model.Identity, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

// GetByPhone retrieves a user by phone number
func (r *mongoUserRepo) GetByPhone(ctx context.Context, phone string) (model.Identity, error) {
	if phone == "" {
		return model.Identity{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"phoneNumber": phone})
}

// Save replaces the stored document with u
func (r *mongoUserRepo) Save(ctx context.Context, u *model.Identity) error {
	u.UpdatedAt = time.Now().UTC()
	doc, err := toUserDocument(u)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		return ErrNotFound
	}

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save user in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUserRepo) findOne(ctx context.Context, filter bson.M) (model.Identity, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Identity{}, ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to find user in mongo: %w", err)
	}
	return doc.toModel(), nil
}

// EnsureUserIndexes creates the unique email index and a partial unique index
// on phoneNumber that ignores documents without a phone.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys: bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("phone_unique").
				SetPartialFilterExpression(bson.M{"phoneNumber": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
