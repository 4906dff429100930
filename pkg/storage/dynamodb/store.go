// Package dynamodb implements the Storage interface against AWS DynamoDB,
// the authoritative remote backend. Every invariant-bearing compound
// mutation is a single TransactWriteItems call guarded by condition
// expressions and an optimistic version counter on member rows, so a second
// concurrent writer deterministically fails instead of double-applying.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/lanternhq/lantern/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
// Extracted so tests can mock the client.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Tables holds the DynamoDB table names for each collection.
type Tables struct {
	Members            string
	Flares             string
	HelpRequests       string
	Ledger             string
	Connections        string
	ConnectionRequests string
	Invites            string
	Announcements      string
	Recipients         string
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client DynamoDBAPI
	Tables Tables
}

// New creates a new Store.
func New(client DynamoDBAPI, tables Tables) *Store {
	return &Store{Client: client, Tables: tables}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

const (
	flareIDIndex = "flare_id-index"
	fromIDIndex  = "from_id-index"
	toIDIndex    = "to_id-index"
	pairIndex    = "pair-index"
	memberAIndex = "member_a-index"
	memberBIndex = "member_b-index"
)
