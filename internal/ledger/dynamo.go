package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/atlasdata/econpipe/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoLedger stores runs and checkpoints in one DynamoDB table using
// "RUN#<id>" / "CHECKPOINT#<source>" partition keys.
type DynamoLedger struct {
	client DynamoAPI
	table  string
}

// NewDynamo creates a DynamoDB-backed ledger on the given table.
func NewDynamo(client DynamoAPI, table string) *DynamoLedger {
	return &DynamoLedger{client: client, table: table}
}

type dynamoRun struct {
	PK             string  `dynamodbav:"pk"`
	SK             string  `dynamodbav:"sk"`
	ID             string  `dynamodbav:"ingestion_run_id"`
	Scope          string  `dynamodbav:"run_scope"`
	StartTS        string  `dynamodbav:"start_ts"`
	EndTS          *string `dynamodbav:"end_ts"`
	Status         string  `dynamodbav:"status"`
	RowsProcessed  *int    `dynamodbav:"rows_processed"`
	LastCheckpoint *string `dynamodbav:"last_checkpoint"`
	ErrorMessage   *string `dynamodbav:"error_message"`
}

func runKey(runID string) string { return "RUN#" + runID }

func (d *DynamoLedger) StartRun(ctx context.Context, scope string) (string, error) {
	id := uuid.New().String()
	item, err := attributevalue.MarshalMap(dynamoRun{
		PK:      runKey(id),
		SK:      "META",
		ID:      id,
		Scope:   scope,
		StartTS: time.Now().UTC().Format(time.RFC3339Nano),
		Status:  string(model.RunStatusRunning),
	})
	if err != nil {
		return "", eris.Wrap(err, "ledger: marshal run item")
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return "", eris.Wrapf(err, "ledger: put run for scope %s", scope)
	}
	return id, nil
}

func (d *DynamoLedger) EndRun(ctx context.Context, runID string, status model.RunStatus, opts EndRunOpts) (*model.Run, error) {
	updateExpr := "SET #status = :status, end_ts = :end_ts"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(status)},
		":end_ts": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	names := map[string]string{"#status": "status"}

	if opts.RowsProcessed != nil {
		updateExpr += ", rows_processed = :rows"
		values[":rows"], _ = attributevalue.Marshal(*opts.RowsProcessed)
	}
	if opts.LastCheckpoint != nil {
		updateExpr += ", last_checkpoint = :ckpt"
		values[":ckpt"] = &types.AttributeValueMemberS{Value: *opts.LastCheckpoint}
	}
	if opts.ErrorMessage != nil {
		updateExpr += ", error_message = :err"
		values[":err"] = &types.AttributeValueMemberS{Value: *opts.ErrorMessage}
	}

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: runKey(runID)},
			"sk": &types.AttributeValueMemberS{Value: "META"},
		},
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: values,
		ExpressionAttributeNames:  names,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, eris.Wrapf(ErrRunNotFound, "id=%s", runID)
		}
		return nil, eris.Wrapf(err, "ledger: update run %s", runID)
	}

	var item dynamoRun
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return nil, eris.Wrap(err, "ledger: unmarshal updated run")
	}
	return item.toRun()
}

func (i dynamoRun) toRun() (*model.Run, error) {
	start, err := time.Parse(time.RFC3339Nano, i.StartTS)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: parse start_ts")
	}

	run := model.Run{
		ID:             i.ID,
		Scope:          i.Scope,
		StartTS:        start,
		Status:         model.RunStatus(i.Status),
		RowsProcessed:  i.RowsProcessed,
		LastCheckpoint: i.LastCheckpoint,
		ErrorMessage:   i.ErrorMessage,
	}
	if i.EndTS != nil {
		end, err := time.Parse(time.RFC3339Nano, *i.EndTS)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: parse end_ts")
		}
		run.EndTS = &end
	}
	return &run, nil
}

type dynamoCheckpoint struct {
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	Source string `dynamodbav:"source"`
	Value  string `dynamodbav:"value"`
}

func (d *DynamoLedger) SaveCheckpoint(ctx context.Context, source, value string) error {
	item, err := attributevalue.MarshalMap(dynamoCheckpoint{
		PK:     "CHECKPOINT#" + source,
		SK:     "META",
		Source: source,
		Value:  value,
	})
	if err != nil {
		return eris.Wrap(err, "ledger: marshal checkpoint item")
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return eris.Wrapf(err, "ledger: save checkpoint %s", source)
}

func (d *DynamoLedger) LoadCheckpoint(ctx context.Context, source, def string) (string, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "CHECKPOINT#" + source},
			"sk": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "ledger: load checkpoint %s", source)
	}
	if out.Item == nil {
		return def, nil
	}

	var item dynamoCheckpoint
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", eris.Wrap(err, "ledger: unmarshal checkpoint")
	}
	return item.Value, nil
}

func (d *DynamoLedger) ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error) {
	var checkpoints []model.Checkpoint
	var startKey map[string]types.AttributeValue

	for {
		out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(d.table),
			FilterExpression: aws.String("begins_with(pk, :ckpt_prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":ckpt_prefix": &types.AttributeValueMemberS{Value: "CHECKPOINT#"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan checkpoints")
		}

		for _, raw := range out.Items {
			var item dynamoCheckpoint
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, eris.Wrap(err, "ledger: unmarshal checkpoint")
			}
			checkpoints = append(checkpoints, model.Checkpoint{Source: item.Source, Value: item.Value})
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(checkpoints, func(i, j int) bool { return checkpoints[i].Source < checkpoints[j].Source })
	return checkpoints, nil
}

func (d *DynamoLedger) ListRuns(ctx context.Context, scope string) ([]model.Run, error) {
	var runs []model.Run
	var startKey map[string]types.AttributeValue

	for {
		out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(d.table),
			FilterExpression: aws.String("begins_with(pk, :run_prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":run_prefix": &types.AttributeValueMemberS{Value: "RUN#"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan runs")
		}

		for _, raw := range out.Items {
			var item dynamoRun
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, eris.Wrap(err, "ledger: unmarshal run")
			}
			if scope != "" && item.Scope != scope {
				continue
			}
			run, err := item.toRun()
			if err != nil {
				return nil, err
			}
			runs = append(runs, *run)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	// Scans return items in key order; restore insertion order by start time.
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartTS.Before(runs[j].StartTS) })
	return runs, nil
}

func (d *DynamoLedger) LastRun(ctx context.Context, scope string) (*model.Run, error) {
	runs, err := d.ListRuns(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	last := runs[len(runs)-1]
	return &last, nil
}

func (d *DynamoLedger) Close() error { return nil }
