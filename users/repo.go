// Package users stores the application's user records in DynamoDB.
package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table layout.
const (
	AttrPK     = "pk"
	EmailIndex = "email-index"
)

// ErrConflict is returned when a write loses an optimistic locking race:
// the user already exists on insert, or the stored version moved on update
// and delete.
var ErrConflict = errors.New("users: conflicting write")

// UserData is the profile of a registered user.
type UserData struct {
	// Username is the Cognito sub. It is the partition key.
	Username  string `dynamodbav:"username" json:"username"`
	Email     string `dynamodbav:"email" json:"email"`
	FirstName string `dynamodbav:"first_name" json:"firstName"`
	LastName  string `dynamodbav:"last_name" json:"lastName"`
}

// User is a stored user record.
type User = Versioned[UserData]

// DynamoDBAPI is the subset of the DynamoDB client used by Repo.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Repo reads and writes users.
type Repo struct {
	client DynamoDBAPI
	table  string
	now    func() time.Time
}

// RepoOption configures a Repo.
type RepoOption func(*Repo)

// WithClock sets the clock stamping last_write. Defaults to time.Now.
func WithClock(now func() time.Time) RepoOption {
	return func(r *Repo) {
		r.now = now
	}
}

// NewRepo creates a Repo on table.
func NewRepo(client DynamoDBAPI, table string, opts ...RepoOption) *Repo {
	r := &Repo{
		client: client,
		table:  table,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the table name.
func (r *Repo) Table() string {
	return r.table
}

// Insert stores a new user as version 1. It fails with ErrConflict when the
// username is taken.
func (r *Repo) Insert(ctx context.Context, data UserData) error {
	item, err := r.item(NewVersioned(data, r.now()))
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return r.wrap("insert", data.Username, err)
	}
	return nil
}

// Read returns the user stored under username, or nil when there is none.
func (r *Repo) Read(ctx context.Context, username string) (*User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       key(username),
	})
	if err != nil {
		return nil, r.wrap("read", username, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return decode(out.Item)
}

// FindByEmail returns the first user with the given email, or nil when there is none.
func (r *Repo) FindByEmail(ctx context.Context, email string) (*User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(EmailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, r.wrap("find", email, err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return decode(out.Items[0])
}

// Update replaces the user with data as version+1, provided the stored
// record still is at version. It fails with ErrConflict otherwise.
func (r *Repo) Update(ctx context.Context, data UserData, version uint16) error {
	next := NewVersioned(data, r.now())
	next.DataVersion = version + 1
	item, err := r.item(next)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("data_version = :version"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": versionValue(version),
		},
	})
	if err != nil {
		return r.wrap("update", data.Username, err)
	}
	return nil
}

// Delete removes the user, provided the stored record is at version.
func (r *Repo) Delete(ctx context.Context, username string, version uint16) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 key(username),
		ConditionExpression: aws.String("data_version = :version"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": versionValue(version),
		},
	})
	if err != nil {
		return r.wrap("delete", username, err)
	}
	return nil
}

func (r *Repo) item(user User) (map[string]types.AttributeValue, error) {
	item, err := ToItem(user)
	if err != nil {
		return nil, fmt.Errorf("users: marshal %s: %w", user.Data.Username, err)
	}
	item[AttrPK] = &types.AttributeValueMemberS{Value: user.Data.Username}
	return item, nil
}

// wrap adds context to a client error and maps failed conditions to ErrConflict.
func (r *Repo) wrap(op, subject string, err error) error {
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return fmt.Errorf("users: %s %s: %w", op, subject, ErrConflict)
	}
	return fmt.Errorf("users: %s %s in %s: %w", op, subject, r.table, err)
}

func decode(item map[string]types.AttributeValue) (*User, error) {
	user, err := FromItem[UserData](item)
	if err != nil {
		return nil, fmt.Errorf("users: unmarshal: %w", err)
	}
	return &user, nil
}

func key(username string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: username},
	}
}

func versionValue(version uint16) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(version), 10)}
}
