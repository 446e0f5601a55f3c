package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"botflow/bot/flow"
	"botflow/entity"
)

// GetBot retrieves a bot definition by id.
func (m *MongoDB) GetBot(ctx context.Context, botID int64) (*entity.Bot, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(botsCollection)
	filter := bson.D{{Key: "id", Value: botID}}

	var bot entity.Bot
	err = collection.FindOne(ctx, filter).Decode(&bot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %d", flow.ErrBotNotFound, botID)
		}
		return nil, err
	}

	return &bot, nil
}

// LoadGraph reads a bot with its blocks and connections and assembles the
// executable snapshot. Connections are sorted by id so that edge order, and
// with it the engine's tie-break, is stable across loads.
func (m *MongoDB) LoadGraph(ctx context.Context, botID int64) (flow.Graph, error) {
	bot, err := m.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	blocks, err := m.ListBlocks(ctx, botID)
	if err != nil {
		return nil, err
	}

	conns, err := m.listConnections(ctx, botID)
	if err != nil {
		return nil, err
	}

	return flow.NewSnapshot(bot.EntryBlockID, blocks, conns)
}

// ListBlocks retrieves all blocks of a bot sorted by id.
func (m *MongoDB) ListBlocks(ctx context.Context, botID int64) ([]*entity.Block, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(blocksCollection)

	filter := bson.D{{Key: "bot_id", Value: botID}}
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.findError(err)
	}
	defer cursor.Close(ctx)

	var blocks []*entity.Block
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

func (m *MongoDB) listConnections(ctx context.Context, botID int64) ([]*entity.Connection, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(connectionsCollection)

	filter := bson.D{{Key: "bot_id", Value: botID}}
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.findError(err)
	}
	defer cursor.Close(ctx)

	var conns []*entity.Connection
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}

	return conns, nil
}

// CreateBlock inserts a new block, assigning the next id from the counter
// sequence when the block carries none.
func (m *MongoDB) CreateBlock(ctx context.Context, block *entity.Block) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	if block.ID == 0 {
		id, err := m.nextID(ctx, connection, blocksCollection)
		if err != nil {
			return err
		}
		block.ID = id
	}

	collection := connection.Database(m.database).Collection(blocksCollection)
	_, err = collection.InsertOne(ctx, block)
	if err != nil {
		return fmt.Errorf("inserting block: %w", err)
	}

	return nil
}

// nextID atomically increments the named counter and returns the new value.
func (m *MongoDB) nextID(ctx context.Context, connection *mongo.Client, name string) (int64, error) {
	collection := connection.Database(m.database).Collection(countersCollection)

	filter := bson.D{{Key: "_id", Value: name}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result struct {
		Seq int64 `bson:"seq"`
	}
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}

	return result.Seq, nil
}
