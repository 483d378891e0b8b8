package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sentinel/oracle"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.ScanOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestOracle_Count_Paginated(t *testing.T) {
	client := new(mockClient)
	lastKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "L100"}}

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{Count: 100, LastEvaluatedKey: lastKey}, nil).Once()
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{Count: 23}, nil).Once()

	n, err := New(client, "lessons").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(123), n)
	client.AssertExpectations(t)
}

func TestOracle_Count_Filter(t *testing.T) {
	client := new(mockClient)
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return aws.ToString(in.TableName) == "lessons" &&
			in.Select == types.SelectCount &&
			aws.ToString(in.FilterExpression) == "#s = :live" &&
			in.ExpressionAttributeNames["#s"] == "status"
	})).Return(&dynamodb.ScanOutput{Count: 4}, nil).Once()

	o := New(client, "lessons", func(o *Options) {
		o.FilterExpression = "#s = :live"
		o.Names = map[string]string{"#s": "status"}
		o.Values = map[string]types.AttributeValue{":live": &types.AttributeValueMemberS{Value: "live"}}
	})

	n, err := o.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	client.AssertExpectations(t)
}

func TestOracle_Count_Error(t *testing.T) {
	client := new(mockClient)
	client.On("Scan", mock.Anything, mock.Anything).Return(nil, errors.New("ResourceNotFoundException")).Once()

	_, err := New(client, "lessons").Count(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrUnavailable)
}
