// README: Location store backed by MongoDB; the unit id is the document _id.
package location

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MongoCollectionName = "ubicaciones"

// MongoStore wraps a MongoDB collection holding one document per unit.
type MongoStore struct {
	Collection *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{Collection: coll}
}

// Upsert is one UpdateOne with upsert; the document-level lock makes the
// merge atomic. ruta is only in $set when supplied, so an omitted route keeps
// the stored value. actualizado comes from the server clock.
func (s *MongoStore) Upsert(ctx context.Context, unitID string, lat, lon float64, route *string) error {
	if s.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}

	set := bson.M{"latitud": lat, "longitud": lon}
	if route != nil {
		set["ruta"] = *route
	}
	update := bson.M{
		"$set":         set,
		"$currentDate": bson.M{"actualizado": true},
	}

	_, err := s.Collection.UpdateOne(ctx, bson.M{"_id": unitID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, unitID string) (*Record, error) {
	if s.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	var rec Record
	err := s.Collection.FindOne(ctx, bson.M{"_id": unitID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &rec, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Record, error) {
	if s.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	cursor, err := s.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer cursor.Close(ctx)

	records := []Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return records, nil
}
