package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"expense/transaction/options"
)

var _ TransactionRepo = (*MongoTransactionRepo)(nil)

// MongoTransactionRepo stores each transaction as one document
type MongoTransactionRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(coll *mongo.Collection) (*MongoTransactionRepo, error) {
	if coll == nil {
		return nil, errors.New("mongo repo: nil collection")
	}
	return &MongoTransactionRepo{coll: coll}, nil
}

// document is the stored shape of a Transaction
type document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Type        string             `bson:"type"`
	Amount      amount             `bson:"amount"`
	Category    string             `bson:"category"`
	Description string             `bson:"description"`
	Timestamp   time.Time          `bson:"timestamp"`
}

// amount is written as Decimal128 and read from any BSON number,
// since documents written by other clients usually hold a double.
type amount struct {
	decimal.Decimal
}

func (a amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	v, err := toDecimal128(a.Decimal)
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(v)
}

func (a *amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return fmt.Errorf("reading decimal amount: %w", err)
		}
		a.Decimal = d
	case bsontype.Double:
		a.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		a.Decimal = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		a.Decimal = decimal.NewFromInt(raw.Int64())
	default:
		return fmt.Errorf("cannot decode %s into an amount", t)
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("converting amount %s: %w", d.String(), err)
	}
	return v, nil
}

func (d document) transaction() *Transaction {
	return &Transaction{
		ID:          d.ID.Hex(),
		Type:        Kind(d.Type),
		Amount:      d.Amount.Decimal,
		Category:    d.Category,
		Description: d.Description,
		Timestamp:   d.Timestamp.UTC(),
	}
}

func (r *MongoTransactionRepo) Create(ctx context.Context, t *Transaction) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	// BSON dates carry milliseconds
	t.Timestamp = t.Timestamp.Truncate(time.Millisecond)

	res, err := r.coll.InsertOne(ctx, document{
		Type:        string(t.Type),
		Amount:      amount{t.Amount},
		Category:    t.Category,
		Description: t.Description,
		Timestamp:   t.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("inserting transaction: unexpected id %v", res.InsertedID)
	}
	t.ID = oid.Hex()
	return nil
}

func (r *MongoTransactionRepo) FindById(ctx context.Context, id string) (*Transaction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc document
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		return nil, noDocuments(err, "finding transaction "+id)
	}
	return doc.transaction(), nil
}

func (r *MongoTransactionRepo) Find(ctx context.Context, transactionOptions ...*options.TransactionOptions) ([]*Transaction, error) {
	filter, err := buildMongoFilter(options.Merge(transactionOptions...))
	if err != nil {
		return nil, err
	}

	cursor, err := r.coll.Find(ctx, filter,
		mongooptions.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	result := make([]*Transaction, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.transaction())
	}
	return result, nil
}

func buildMongoFilter(opt *options.TransactionOptions) (bson.M, error) {
	filter := bson.M{}

	if len(opt.IDs) > 0 {
		oids := make([]primitive.ObjectID, 0, len(opt.IDs))
		for _, id := range opt.IDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		// an empty $in matches nothing, as it should when no id parses
		filter["_id"] = bson.M{"$in": oids}
	}
	if len(opt.Kinds) > 0 {
		filter["type"] = bson.M{"$in": opt.Kinds}
	}
	if len(opt.Categories) > 0 {
		filter["category"] = bson.M{"$in": opt.Categories}
	}
	if opt.Amount != nil {
		bounds := bson.M{}
		if opt.Amount.Low != nil {
			low, err := toDecimal128(*opt.Amount.Low)
			if err != nil {
				return nil, err
			}
			bounds["$gte"] = low
		}
		if opt.Amount.High != nil {
			high, err := toDecimal128(*opt.Amount.High)
			if err != nil {
				return nil, err
			}
			bounds["$lte"] = high
		}
		if len(bounds) > 0 {
			filter["amount"] = bounds
		}
	}
	if opt.Timestamp != nil {
		bounds := bson.M{}
		if opt.Timestamp.Low != nil {
			bounds["$gte"] = *opt.Timestamp.Low
		}
		if opt.Timestamp.High != nil {
			bounds["$lte"] = *opt.Timestamp.High
		}
		if len(bounds) > 0 {
			filter["timestamp"] = bounds
		}
	}

	return filter, nil
}

func (r *MongoTransactionRepo) UpdateById(ctx context.Context, id string, fields Fields) (*Transaction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{}
	if fields.Type != nil {
		set["type"] = string(*fields.Type)
	}
	if fields.Amount != nil {
		set["amount"] = amount{*fields.Amount}
	}
	if fields.Category != nil {
		set["category"] = *fields.Category
	}
	if fields.Description != nil {
		set["description"] = *fields.Description
	} else if fields.Has(FieldDescription) {
		set["description"] = ""
	}
	if fields.Timestamp != nil {
		set["timestamp"] = fields.Timestamp.UTC().Truncate(time.Millisecond)
	}
	if len(set) == 0 {
		return r.FindById(ctx, id)
	}

	var doc document
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		mongooptions.FindOneAndUpdate().SetReturnDocument(mongooptions.After),
	).Decode(&doc)
	if err != nil {
		return nil, noDocuments(err, "updating transaction "+id)
	}
	return doc.transaction(), nil
}

func (r *MongoTransactionRepo) DeleteById(ctx context.Context, id string) (*Transaction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc document
	err = r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		return nil, noDocuments(err, "deleting transaction "+id)
	}
	return doc.transaction(), nil
}

func noDocuments(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
