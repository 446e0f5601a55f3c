package repository

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"botflow/entity"
)

// CheckApiKey resolves an API key to the username it was issued for.
func (m *MongoDB) CheckApiKey(key string) (string, error) {
	connection, err := m.connect()
	if err != nil {
		return "", err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)
	filter := bson.D{{Key: "key", Value: key}}

	var result struct {
		Username string `bson:"username"`
		Key      string `bson:"key"`
	}
	err = collection.FindOne(m.ctx, filter).Decode(&result)
	if err != nil {
		return "", err
	}

	if result.Username == "" {
		return "", fmt.Errorf("api key not found")
	}

	return result.Username, nil
}

// AuthenticateByToken backs the API's bearer-token middleware.
func (m *MongoDB) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	username, err := m.CheckApiKey(token)
	if err != nil {
		return nil, err
	}

	return &entity.UserAuth{
		Username: username,
		Token:    token,
	}, nil
}
