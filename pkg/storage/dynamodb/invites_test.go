package dynamodb

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRedeemInvite(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("UpdateItem", mock.Anything, mock.AnythingOfType("*dynamodb.UpdateItemInput")).Once().Return(&dynamodb.UpdateItemOutput{}, nil)

		err := store.RedeemInvite(context.Background(), "CODE123", "newcomer")

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Already Used", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Once().Return(nil, &types.ConditionalCheckFailedException{})
		usedBy := "earlier-member"
		used := &models.InviteCode{Code: "CODE123", GeneratedBy: "elder1", UsedBy: &usedBy}
		usedAV, _ := attributevalue.MarshalMap(used)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: usedAV}, nil)

		err := store.RedeemInvite(context.Background(), "CODE123", "newcomer")

		assert.ErrorIs(t, err, storage.ErrInviteUsed)
		mockClient.AssertExpectations(t)
	})

	t.Run("Unknown Code", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Once().Return(nil, &types.ConditionalCheckFailedException{})
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{}, nil)

		err := store.RedeemInvite(context.Background(), "NOPE", "newcomer")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestCreateInvite(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("PutItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.PutItemOutput{}, nil)

		created, err := store.CreateInvite(context.Background(), &models.InviteCode{Code: "CODE123", GeneratedBy: "elder1"})

		assert.NoError(t, err)
		assert.Nil(t, created.UsedBy)
		assert.False(t, created.CreatedAt.IsZero())
		mockClient.AssertExpectations(t)
	})

	t.Run("Duplicate Code", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, Tables: testTables()}

		mockClient.On("PutItem", mock.Anything, mock.Anything).Once().Return(nil, &types.ConditionalCheckFailedException{})

		_, err := store.CreateInvite(context.Background(), &models.InviteCode{Code: "CODE123", GeneratedBy: "elder1"})

		assert.ErrorIs(t, err, storage.ErrConflict)
		mockClient.AssertExpectations(t)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		store := &Store{Client: new(mocks.DynamoDBAPI), Tables: testTables()}

		_, err := store.CreateInvite(context.Background(), &models.InviteCode{Code: "CODE123"})

		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}
