package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	outboxMongo "github.com/alkimyk/cmr/internal/infra/db/mongodb"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
	sharedQuery "github.com/alkimyk/cmr/shared/platform/query"
)

// RecordStoreMongoDB implementa RecordRepository con una colección por recurso.
type RecordStoreMongoDB struct {
	client     *mongo.Client
	db         *mongo.Database
	outboxColl *mongo.Collection
}

var _ catalogDomain.RecordRepository = (*RecordStoreMongoDB)(nil)

func NewRecordStoreMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*RecordStoreMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	db := client.Database(dbName)
	return &RecordStoreMongoDB{
		client:     client,
		db:         db,
		outboxColl: db.Collection(outboxMongo.OutboxCollection),
	}, nil
}

func (r *RecordStoreMongoDB) coll(res catalogDomain.Resource) *mongo.Collection {
	return r.db.Collection(res.Table)
}

// --- Mapeo ---

// El id del registro vive en _id.
func fieldName(col string) string {
	if col == catalogDomain.ColID {
		return "_id"
	}
	return col
}

func toDocument(rec catalogDomain.Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		doc[fieldName(k)] = v
	}
	return doc
}

func fromDocument(res catalogDomain.Resource, doc bson.M) catalogDomain.Record {
	rec := make(catalogDomain.Record, len(doc))
	for _, name := range res.ColumnNames() {
		t, _ := res.TypeOf(name)
		v := doc[fieldName(name)]
		switch t {
		case catalogDomain.ColNumber:
			if f, ok := catalogDomain.ParseNumber(v); ok {
				rec[name] = f
				continue
			}
			rec[name] = nil
		case catalogDomain.ColBool:
			if b, ok := catalogDomain.ParseBool(v); ok {
				rec[name] = b
				continue
			}
			rec[name] = nil
		default:
			if v == nil {
				rec[name] = nil
				continue
			}
			rec[name] = fmt.Sprint(v)
		}
	}
	return rec
}

// criteriaToFilter traduce el árbol de criterios a un filtro BSON.
func criteriaToFilter(res catalogDomain.Resource, criteria sharedDomain.Criteria) (bson.M, error) {
	var badField string
	filter, ok := sharedDomain.Visit(criteria, sharedDomain.Visitor[bson.M]{
		Leaf: func(c sharedDomain.Criterion) bson.M {
			if !res.Sortable(c.Field) {
				badField = c.Field
				return bson.M{}
			}
			key := fieldName(c.Field)
			switch c.Op {
			case sharedDomain.OpLike, sharedDomain.OpILike:
				text := strings.Trim(fmt.Sprint(c.Value), "%")
				return bson.M{key: bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}}
			case sharedDomain.OpGt:
				return bson.M{key: bson.M{"$gt": c.Value}}
			case sharedDomain.OpGte:
				return bson.M{key: bson.M{"$gte": c.Value}}
			case sharedDomain.OpLt:
				return bson.M{key: bson.M{"$lt": c.Value}}
			case sharedDomain.OpLte:
				return bson.M{key: bson.M{"$lte": c.Value}}
			default:
				return bson.M{key: bson.M{"$eq": c.Value}}
			}
		},
		Group: func(op sharedDomain.LogicalOperator, parts []bson.M) bson.M {
			arr := make(bson.A, len(parts))
			for i, p := range parts {
				arr[i] = p
			}
			if op == sharedDomain.OpOr {
				return bson.M{"$or": arr}
			}
			return bson.M{"$and": arr}
		},
	})
	if badField != "" {
		return nil, fmt.Errorf("unknown column %q for %s", badField, res.Name)
	}
	if !ok {
		return bson.M{}, nil
	}
	return filter, nil
}

// --- Lectura ---

func (r *RecordStoreMongoDB) Search(ctx context.Context, res catalogDomain.Resource, criteria sharedDomain.Criteria, order sharedQuery.Sort, page sharedQuery.OffsetPagination) ([]catalogDomain.Record, int, error) {
	filter, err := criteriaToFilter(res, criteria)
	if err != nil {
		return nil, 0, err
	}
	if !res.Sortable(order.Field) {
		order = sharedQuery.Sort{Field: res.Label}
	}

	dir := 1
	if order.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: fieldName(order.Field), Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))

	cursor, err := r.coll(res).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var items []catalogDomain.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		items = append(items, fromDocument(res, doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.coll(res).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (r *RecordStoreMongoDB) GetByID(ctx context.Context, res catalogDomain.Resource, id string) (catalogDomain.Record, error) {
	var doc bson.M
	err := r.coll(res).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogDomain.ErrRecordNotFound
		}
		return nil, err
	}
	return fromDocument(res, doc), nil
}

// --- CRUD Transaccional ---

func (r *RecordStoreMongoDB) inTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func (r *RecordStoreMongoDB) insertOutbox(sessCtx mongo.SessionContext, evt sharedDomain.OutboxEvent) error {
	_, err := r.outboxColl.InsertOne(sessCtx, outboxMongo.ToOutboxDocument(evt))
	return err
}

func (r *RecordStoreMongoDB) Create(ctx context.Context, res catalogDomain.Resource, rec catalogDomain.Record, evt sharedDomain.OutboxEvent) error {
	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.coll(res).InsertOne(sessCtx, toDocument(rec)); err != nil {
			return err
		}
		return r.insertOutbox(sessCtx, evt)
	})
}

func (r *RecordStoreMongoDB) Update(ctx context.Context, res catalogDomain.Resource, id string, changes catalogDomain.Record, evt sharedDomain.OutboxEvent) error {
	set := toDocument(changes)
	delete(set, "_id")

	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, err := r.coll(res).UpdateOne(sessCtx, bson.M{"_id": id}, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return catalogDomain.ErrRecordNotFound
		}
		return r.insertOutbox(sessCtx, evt)
	})
}

// errNothingDeleted corta la transacción sin escribir el evento.
var errNothingDeleted = errors.New("nothing deleted")

func (r *RecordStoreMongoDB) Delete(ctx context.Context, res catalogDomain.Resource, id string, evt sharedDomain.OutboxEvent) (bool, error) {
	err := r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, err := r.coll(res).DeleteOne(sessCtx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return errNothingDeleted
		}
		return r.insertOutbox(sessCtx, evt)
	})
	if errors.Is(err, errNothingDeleted) {
		return false, nil
	}
	return err == nil, err
}

// InitSchema crea los índices de orden por defecto y el de pendientes de la outbox.
func (r *RecordStoreMongoDB) InitSchema(ctx context.Context) error {
	for _, res := range catalogDomain.Resources() {
		model := mongo.IndexModel{Keys: bson.D{{Key: res.Label, Value: 1}, {Key: "_id", Value: 1}}}
		if _, err := r.coll(res).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", res.Table, err)
		}
	}
	model := mongo.IndexModel{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "createdAt", Value: 1}}}
	if _, err := r.outboxColl.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create outbox index: %w", err)
	}
	return nil
}
