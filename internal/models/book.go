package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Book struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name        string              `bson:"name" json:"name"`
	Publisher   string              `bson:"publisher,omitempty" json:"publisher,omitempty"`
	Price       float64             `bson:"price" json:"price"`
	SaleEnabled bool                `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice   float64             `bson:"salePrice" json:"salePrice"`
	IsOnSale    bool                `bson:"-" json:"isOnSale"`
	Category    StringList          `bson:"category" json:"category"`
	SchoolID    *primitive.ObjectID `bson:"schoolId,omitempty" json:"schoolId,omitempty"`
	Grade       string              `bson:"grade,omitempty" json:"grade,omitempty"`
	Subject     string              `bson:"subject,omitempty" json:"subject,omitempty"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Barcode     string              `bson:"barcode,omitempty" json:"barcode,omitempty"`
	ImagePath   string              `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Stock       int                 `bson:"stock" json:"stock"`
	InStock     bool                `bson:"-" json:"inStock"`
	IsActive    bool                `bson:"isActive" json:"isActive"`
	IsDeleted   bool                `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt   *time.Time          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}
