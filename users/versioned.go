package users

import (
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the versioning metadata.
const (
	AttrDataVersion = "data_version"
	AttrLastWrite   = "last_write"
)

// ErrNotRecord is returned when a value does not map to a DynamoDB item.
var ErrNotRecord = errors.New("users: value is not a record")

// Versioned wraps a record with optimistic locking metadata.
// The attributes of Data are stored flat, next to data_version and last_write.
type Versioned[T any] struct {
	Data T

	// DataVersion starts at 1 and grows by one with every update.
	DataVersion uint16

	// LastWrite is the time of the last write in Unix milliseconds.
	LastWrite int64
}

// NewVersioned wraps data as the first version, written at now.
func NewVersioned[T any](data T, now time.Time) Versioned[T] {
	return Versioned[T]{
		Data:        data,
		DataVersion: 1,
		LastWrite:   now.UnixMilli(),
	}
}

// versionFields reads the metadata back out of a flat item.
type versionFields struct {
	DataVersion uint16 `dynamodbav:"data_version"`
	LastWrite   int64  `dynamodbav:"last_write"`
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (v Versioned[T]) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v.Data)
	if err != nil {
		return nil, err
	}
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil, ErrNotRecord
	}

	item := make(map[string]types.AttributeValue, len(m.Value)+2)
	for k, attr := range m.Value {
		item[k] = attr
	}
	item[AttrDataVersion] = &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(v.DataVersion), 10)}
	item[AttrLastWrite] = &types.AttributeValueMemberN{Value: strconv.FormatInt(v.LastWrite, 10)}
	return &types.AttributeValueMemberM{Value: item}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (v *Versioned[T]) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return ErrNotRecord
	}

	var data T
	if err := attributevalue.UnmarshalMap(m.Value, &data); err != nil {
		return err
	}
	var meta versionFields
	if err := attributevalue.UnmarshalMap(m.Value, &meta); err != nil {
		return err
	}

	v.Data = data
	v.DataVersion = meta.DataVersion
	v.LastWrite = meta.LastWrite
	return nil
}

// ToItem converts v into a DynamoDB item.
func ToItem[T any](v Versioned[T]) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(v)
}

// FromItem converts a DynamoDB item into a Versioned record.
func FromItem[T any](item map[string]types.AttributeValue) (Versioned[T], error) {
	var v Versioned[T]
	err := attributevalue.UnmarshalMap(item, &v)
	return v, err
}
