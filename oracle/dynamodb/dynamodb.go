// Package dynamodb counts items in a DynamoDB table.
//
// The count is the sum of Scan(Select=COUNT) pages, optionally narrowed by a
// filter expression. Scans read the whole table, so this oracle suits small
// catalog tables such as a lesson index.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/sentinel/oracle"
)

// Client is the interface for DynamoDB operations.
type Client interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Options configures an Oracle.
type Options struct {
	// FilterExpression narrows the counted items, e.g. "status = :live".
	FilterExpression string
	Values           map[string]types.AttributeValue
	Names            map[string]string
	// ConsistentRead requests strongly consistent reads.
	ConsistentRead bool
}

// Oracle implements oracle.CountOracle against a DynamoDB table.
type Oracle struct {
	client    Client
	tableName string
	opts      Options
}

// New creates a DynamoDB oracle counting the items of tableName.
func New(client Client, tableName string, optFns ...func(o *Options)) *Oracle {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, tableName: tableName, opts: opts}
}

// Count implements oracle.CountOracle.
func (o *Oracle) Count(ctx context.Context) (int64, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(o.tableName),
		Select:         types.SelectCount,
		ConsistentRead: aws.Bool(o.opts.ConsistentRead),
	}
	if o.opts.FilterExpression != "" {
		input.FilterExpression = aws.String(o.opts.FilterExpression)
		input.ExpressionAttributeValues = o.opts.Values
		if len(o.opts.Names) > 0 {
			input.ExpressionAttributeNames = o.opts.Names
		}
	}

	var total int64
	p := dynamodb.NewScanPaginator(o.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, oracle.Unavailablef("dynamodb: scan %s: %v", o.tableName, err)
		}
		total += int64(page.Count)
	}
	return total, nil
}
