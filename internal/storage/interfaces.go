package storage

import (
	"context"
	"time"

	"risk-review-system/internal/models"
)

// ReviewRepository определяет интерфейс для работы с очередью проверки в хранилище.
// Изменение элемента выполняется с оптимистичной блокировкой по версии вместе с записью аудита.
type ReviewRepository interface {
	// CreateReviewItem сохраняет новый элемент; ConflictError, если по операции уже есть открытый элемент
	CreateReviewItem(ctx context.Context, item *models.ReviewQueueItem) error

	// GetReviewItem получает элемент вместе с журналом аудита; NotFoundError, если нет
	GetReviewItem(ctx context.Context, id string) (*models.ReviewQueueItem, error)

	// GetOpenReviewItemByTransaction получает открытый элемент по операции; NotFoundError, если нет
	GetOpenReviewItemByTransaction(ctx context.Context, transactionID string) (*models.ReviewQueueItem, error)

	// UpdateReviewItem сохраняет изменения, если версия в БД равна expectedVersion, иначе ConflictError.
	// Записи аудита добавляются в той же транзакции, при успехе item.Version увеличивается.
	UpdateReviewItem(ctx context.Context, item *models.ReviewQueueItem, expectedVersion int, entries ...models.AuditEntry) error

	// AppendAudit добавляет запись аудита без смены состояния
	AppendAudit(ctx context.Context, itemID string, entry models.AuditEntry) error

	// ListOpenReviewItems открытые элементы организации в порядке (приоритет desc, created_at asc)
	ListOpenReviewItems(ctx context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error)

	// ListReviewItems все элементы организации, пустой organizationID - все организации
	ListReviewItems(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error)

	// CountOpenAssignments число открытых назначенных элементов по пользователям
	CountOpenAssignments(ctx context.Context, organizationID string) (map[string]int, error)
}

// PolicyConfigRepository определяет интерфейс хранения конфигурации политик
type PolicyConfigRepository interface {
	// GetPolicyConfig получает конфигурацию области; NotFoundError, если нет
	GetPolicyConfig(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error)

	// CreatePolicyConfig сохраняет новую конфигурацию; ConflictError, если уже создана
	CreatePolicyConfig(ctx context.Context, cfg *models.PolicyConfig) error

	// UpdatePolicyConfig сохраняет конфигурацию, если версия в БД равна expectedVersion
	UpdatePolicyConfig(ctx context.Context, cfg *models.PolicyConfig, expectedVersion int) error
}

// UserRepository справочник пользователей и ролей
type UserRepository interface {
	// GetUser получает пользователя; NotFoundError, если нет
	GetUser(ctx context.Context, id string) (*models.User, error)

	// ListReviewers активные пользователи организации с ролью проверяющего
	ListReviewers(ctx context.Context, organizationID string) ([]*models.User, error)

	// SaveUser создает или обновляет пользователя
	SaveUser(ctx context.Context, user *models.User) error
}

// HistoryQuery фильтр выборки из зеркала учетной книги
type HistoryQuery struct {
	OrganizationID string
	Type           models.TransactionType
	Category       string
	CounterpartyID string
	CreatedBy      string
	From           time.Time
	To             time.Time
	ExcludeID      string
	Limit          int
}

// CounterpartyActivity число операций контрагента по типу
type CounterpartyActivity struct {
	CounterpartyID string
	TaxID          string
	Type           models.TransactionType
	Count          int
}

// HistoryRepository зеркало учетной книги, только чтение со стороны скоринга
type HistoryRepository interface {
	// SaveLedgerTransaction добавляет операцию в зеркало (повторная запись игнорируется)
	SaveLedgerTransaction(ctx context.Context, tx *models.Transaction) error

	// ListTransactions операции по фильтру, упорядоченные по дате
	ListTransactions(ctx context.Context, q HistoryQuery) ([]*models.Transaction, error)

	// CounterpartyActivity активность всех контрагентов с данным налоговым идентификатором
	CounterpartyActivity(ctx context.Context, organizationID, taxID string) ([]CounterpartyActivity, error)
}
