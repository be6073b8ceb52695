// Package installation stores the Slack OAuth results (bot and user
// tokens) per tenant. Items share one DynamoDB table keyed by
// installation_id, which is "<tenant>#bot" or "<tenant>#user#<user id>".
package installation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound is returned when no bot installation exists for a tenant.
var ErrNotFound = errors.New("installation not found")

// TenantID derives the tenant identity from a Slack team and enterprise.
// Enterprise-wide installations have no team and use the enterprise ID.
func TenantID(enterpriseID, teamID string) string {
	if teamID != "" {
		return teamID
	}
	return enterpriseID
}

// Installation is one completed OAuth install.
type Installation struct {
	ID           string    `dynamodbav:"installation_id"`
	TenantID     string    `dynamodbav:"tenant_id"`
	EnterpriseID string    `dynamodbav:"enterprise_id,omitempty"`
	TeamID       string    `dynamodbav:"team_id,omitempty"`
	AppID        string    `dynamodbav:"app_id,omitempty"`
	UserID       string    `dynamodbav:"user_id,omitempty"`
	UserToken    string    `dynamodbav:"user_token,omitempty"`
	UserScopes   []string  `dynamodbav:"user_scopes,omitempty"`
	BotUserID    string    `dynamodbav:"bot_user_id,omitempty"`
	BotToken     string    `dynamodbav:"bot_token,omitempty"`
	BotScopes    []string  `dynamodbav:"bot_scopes,omitempty"`
	InstalledAt  time.Time `dynamodbav:"installed_at"`
}

// HasScope reports whether the bot was granted scope.
func (i *Installation) HasScope(scope string) bool {
	for _, s := range i.BotScopes {
		if s == scope {
			return true
		}
	}
	return false
}

func botKey(tenantID string) string          { return tenantID + "#bot" }
func userKey(tenantID, userID string) string { return tenantID + "#user#" + userID }
func tenantPrefix(tenantID string) string    { return tenantID + "#" }

// Store is the interface for installation operations.
type Store interface {
	Save(ctx context.Context, inst *Installation) error
	FindBot(ctx context.Context, tenantID string) (*Installation, error)
	DeleteUser(ctx context.Context, tenantID, userID string) error
	DeleteBot(ctx context.Context, tenantID string) error
	DeleteAll(ctx context.Context, tenantID string) error
}

// DynamoStore implements Store using AWS DynamoDB.
type DynamoStore struct {
	db        *dynamodb.Client
	tableName string
}

func NewDynamo(db *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{db: db, tableName: tableName}
}

// Save writes the bot item and, when the installer granted user scopes,
// the installer's user item. Later installs overwrite earlier ones.
func (s *DynamoStore) Save(ctx context.Context, inst *Installation) error {
	for _, item := range split(inst) {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("marshal installation: %w", err)
		}
		if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      av,
		}); err != nil {
			return fmt.Errorf("dynamodb PutItem: %w", err)
		}
	}
	return nil
}

// FindBot returns the tenant's bot installation or ErrNotFound.
func (s *DynamoStore) FindBot(ctx context.Context, tenantID string) (*Installation, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(botKey(tenantID)),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var inst Installation
	if err := attributevalue.UnmarshalMap(out.Item, &inst); err != nil {
		return nil, fmt.Errorf("unmarshal installation: %w", err)
	}
	return &inst, nil
}

func (s *DynamoStore) DeleteUser(ctx context.Context, tenantID, userID string) error {
	return s.delete(ctx, userKey(tenantID, userID))
}

func (s *DynamoStore) DeleteBot(ctx context.Context, tenantID string) error {
	return s.delete(ctx, botKey(tenantID))
}

// DeleteAll removes every bot and user item of the tenant.
func (s *DynamoStore) DeleteAll(ctx context.Context, tenantID string) error {
	p := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName:            aws.String(s.tableName),
		ProjectionExpression: aws.String("installation_id"),
		FilterExpression:     aws.String("begins_with(installation_id, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: tenantPrefix(tenantID)},
		},
	})
	var errs []error
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("dynamodb Scan: %w", err)
		}
		for _, item := range page.Items {
			id, ok := item["installation_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := s.delete(ctx, id.Value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *DynamoStore) delete(ctx context.Context, id string) error {
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(id),
	}); err != nil {
		return fmt.Errorf("dynamodb DeleteItem %s: %w", id, err)
	}
	return nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"installation_id": &types.AttributeValueMemberS{Value: id},
	}
}

// split turns one OAuth result into the items stored for it.
func split(inst *Installation) []Installation {
	tenant := TenantID(inst.EnterpriseID, inst.TeamID)
	installedAt := inst.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now().UTC()
	}

	var items []Installation
	if inst.BotToken != "" {
		bot := *inst
		bot.ID, bot.TenantID, bot.InstalledAt = botKey(tenant), tenant, installedAt
		bot.UserToken, bot.UserScopes = "", nil
		items = append(items, bot)
	}
	if inst.UserID != "" {
		user := *inst
		user.ID, user.TenantID, user.InstalledAt = userKey(tenant, inst.UserID), tenant, installedAt
		items = append(items, user)
	}
	return items
}
