package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// School groups books into per-grade supply lists. Grades are free-form
// labels ("Grade 1", "LKG") managed by the admin panel.
type School struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	City      string             `bson:"city,omitempty" json:"city,omitempty"`
	Grades    StringList         `bson:"grades" json:"grades"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
