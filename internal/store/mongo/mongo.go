package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/store"
)

const collectionName = "sales"

type saleDocument struct {
	ID          string    `bson:"_id"`
	TableNumber int       `bson:"table_number"`
	TableName   string    `bson:"table_name"`
	Items       []itemDoc `bson:"items"`
	Total       float64   `bson:"total"`
	Timestamp   time.Time `bson:"timestamp"`
	LocalDate   string    `bson:"local_date"`
	CreatedAt   time.Time `bson:"created_at"`
}

type itemDoc struct {
	Name     string  `bson:"name"`
	Price    float64 `bson:"price"`
	Quantity int     `bson:"quantity"`
}

// storedSale is the read shape. Items stay raw because older writers
// stored them as a JSON string instead of an array.
type storedSale struct {
	ID          string        `bson:"_id"`
	TableNumber int           `bson:"table_number"`
	TableName   string        `bson:"table_name"`
	Items       bson.RawValue `bson:"items"`
	Total       float64       `bson:"total"`
	Timestamp   time.Time     `bson:"timestamp"`
	LocalDate   string        `bson:"local_date"`
}

type Store struct {
	client *mongo.Client
	sales  *mongo.Collection
}

func New(ctx context.Context, uri string, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo connection uri is empty")
	}
	if database == "" {
		database = "mesapos"
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(20).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 6*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	sales := client.Database(database).Collection(collectionName)
	if _, err := sales.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure sales index: %w", err)
	}

	return &Store{client: client, sales: sales}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Insert(ctx context.Context, record domain.SaleRecord) error {
	if err := store.ValidateForInsert(record); err != nil {
		return err
	}

	doc := saleDocument{
		ID:          record.ID,
		TableNumber: record.TableNumber,
		TableName:   record.TableName,
		Items:       make([]itemDoc, 0, len(record.Items)),
		Total:       record.Total,
		Timestamp:   time.UnixMilli(record.Timestamp).UTC(),
		LocalDate:   record.Date,
		CreatedAt:   time.Now().UTC(),
	}
	for _, item := range record.Items {
		doc.Items = append(doc.Items, itemDoc{Name: item.Name, Price: item.Price, Quantity: item.Quantity})
	}

	if _, err := s.sales.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) SelectAll(ctx context.Context) ([]domain.SaleRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.sales.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]domain.SaleRecord, 0, 128)
	for cursor.Next(ctx) {
		var row storedSale
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		records = append(records, domain.SaleRecord{
			ID:          row.ID,
			TableNumber: row.TableNumber,
			TableName:   row.TableName,
			Items:       decodeItems(row.Items),
			Total:       row.Total,
			Timestamp:   row.Timestamp.UnixMilli(),
			Date:        row.LocalDate,
			Synced:      true,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.sales.DeleteMany(ctx, bson.D{})
	return err
}

// decodeItems routes both stored shapes through store.DecodeItems so the
// lenient price handling is shared with the SQL backend.
func decodeItems(raw bson.RawValue) []domain.LineItem {
	switch raw.Type {
	case bson.TypeString:
		return store.DecodeItems([]byte(raw.StringValue()))
	case bson.TypeArray:
		var docs []bson.M
		if err := raw.Unmarshal(&docs); err != nil {
			return []domain.LineItem{}
		}
		encoded, err := json.Marshal(docs)
		if err != nil {
			return []domain.LineItem{}
		}
		return store.DecodeItems(encoded)
	default:
		return []domain.LineItem{}
	}
}

