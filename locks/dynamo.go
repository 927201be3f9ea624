package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/condatools/recipebump/internal/errors"
)

// AttrLockID is the name of the primary key for the lock table in DynamoDB.
const AttrLockID = "LockID"

const attrOwner = "Owner"

const (
	// DefaultLockTable is the DynamoDB table used when none is configured.
	DefaultLockTable = "recipebump-locks"

	maxLockRetries                     = 360
	sleepBetweenLockAcquireAttempts    = 10 * time.Second
	maxRetriesWaitingForTableActive    = 30
	sleepBetweenTableStatusChecks      = 10 * time.Second
	dynamodbPayPerRequestBillingMode   = types.BillingModePayPerRequest
	conditionLockItemDoesNotExistExpr  = "attribute_not_exists(" + AttrLockID + ")"
	conditionLockItemOwnedByCallerExpr = attrOwner + " = :owner"
)

// DynamoLock is a named lock backed by conditional writes to a shared DynamoDB table.
// All workers of a distributed fleet construct the lock by name so they resolve to the
// same table item; the owner token keeps one worker from releasing another's lock.
type DynamoLock struct {
	Name      string
	TableName string
	client    *dynamodb.Client
	owner     string
}

// NewDynamoLock constructs a distributed lock bound to the given name, creating the lock
// table on first use if it does not exist yet.
func NewDynamoLock(ctx context.Context, name, tableName, awsRegion string) (*DynamoLock, error) {
	if tableName == "" {
		tableName = DefaultLockTable
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "error loading AWS configuration for the lock table")
	}

	lock := &DynamoLock{
		Name:      name,
		TableName: tableName,
		client:    dynamodb.NewFromConfig(cfg),
		owner:     uuid.NewString(),
	}

	if err := lock.createLockTableIfNecessary(ctx); err != nil {
		return nil, err
	}

	return lock, nil
}

// AcquireLock acquires the lock by writing an item to DynamoDB. If that write fails the
// condition check, someone else holds the lock, so we retry until they release it.
func (lock *DynamoLock) AcquireLock() error {
	ctx := context.Background()

	item := map[string]types.AttributeValue{
		AttrLockID: &types.AttributeValueMemberS{Value: lock.Name},
		attrOwner:  &types.AttributeValueMemberS{Value: lock.owner},
	}

	for retries := 0; ; retries++ {
		_, err := lock.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(lock.TableName),
			Item:                item,
			ConditionExpression: aws.String(conditionLockItemDoesNotExistExpr),
		})
		if err == nil {
			return nil
		}

		var conditionFailed *types.ConditionalCheckFailedException
		if !errors.As(err, &conditionFailed) {
			return errors.WithStackTrace(err)
		}

		if retries >= maxLockRetries {
			return errors.Errorf("unable to acquire %s after %d attempts", lock, retries)
		}

		time.Sleep(sleepBetweenLockAcquireAttempts)
	}
}

// ReleaseLock releases the lock by deleting the item from DynamoDB, conditional on this
// handle being the owner. Releasing a lock we do not hold returns ErrNotAcquired.
func (lock *DynamoLock) ReleaseLock() error {
	_, err := lock.client.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(lock.TableName),
		Key: map[string]types.AttributeValue{
			AttrLockID: &types.AttributeValueMemberS{Value: lock.Name},
		},
		ConditionExpression: aws.String(conditionLockItemOwnedByCallerExpr),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: lock.owner},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrNotAcquired{Lock: lock.String()}
		}

		return errors.WithStackTrace(err)
	}

	return nil
}

func (lock *DynamoLock) String() string {
	return fmt.Sprintf("DynamoDB lock %s in table %s", lock.Name, lock.TableName)
}

func (lock *DynamoLock) createLockTableIfNecessary(ctx context.Context) error {
	exists, err := lock.lockTableExistsAndIsActive(ctx)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return lock.createLockTable(ctx)
}

func (lock *DynamoLock) lockTableExistsAndIsActive(ctx context.Context) (bool, error) {
	output, err := lock.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(lock.TableName)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}

		return false, errors.WithStackTrace(err)
	}

	return output.Table.TableStatus == types.TableStatusActive, nil
}

// createLockTable creates the lock table in DynamoDB and waits until it is in "active"
// state. If the table already exists (e.g. another worker created it at the same time),
// merely wait until it is active.
func (lock *DynamoLock) createLockTable(ctx context.Context) error {
	_, err := lock.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(lock.TableName),
		BillingMode: dynamodbPayPerRequestBillingMode,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrLockID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrLockID), KeyType: types.KeyTypeHash},
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return errors.WithStackTrace(err)
		}
	}

	return lock.waitForTableToBeActive(ctx)
}

func (lock *DynamoLock) waitForTableToBeActive(ctx context.Context) error {
	for retries := 0; retries < maxRetriesWaitingForTableActive; retries++ {
		active, err := lock.lockTableExistsAndIsActive(ctx)
		if err != nil {
			return err
		}

		if active {
			return nil
		}

		time.Sleep(sleepBetweenTableStatusChecks)
	}

	return errors.Errorf("table %s is still not in active state after %d retries", lock.TableName, maxRetriesWaitingForTableActive)
}
