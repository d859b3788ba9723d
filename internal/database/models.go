package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Table struct {
	ID            uuid.UUID          `json:"id"`
	Number        int32              `json:"number"`
	Capacity      int32              `json:"capacity"`
	WaiterID      pgtype.UUID        `json:"waiter_id"`
	Status        string             `json:"status"`
	HasPaidTab    bool               `json:"has_paid_tab"`
	AllTabsPaid   bool               `json:"all_tabs_paid"`
	OccupiedSince pgtype.Timestamptz `json:"occupied_since"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type MenuItem struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Price     pgtype.Numeric `json:"price"`
	Available bool           `json:"available"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Tab struct {
	ID                          uuid.UUID          `json:"id"`
	TableID                     pgtype.UUID        `json:"table_id"`
	Type                        string             `json:"type"`
	Status                      string             `json:"status"`
	Total                       pgtype.Numeric     `json:"total"`
	ServiceChargeIncluded       bool               `json:"service_charge_included"`
	ServiceChargePaidSeparately bool               `json:"service_charge_paid_separately"`
	ServiceCharge               pgtype.Numeric     `json:"service_charge"`
	FinalTotal                  pgtype.Numeric     `json:"final_total"`
	PaymentMethod               pgtype.Text        `json:"payment_method"`
	PaidAmount                  pgtype.Numeric     `json:"paid_amount"`
	ChangeAmount                pgtype.Numeric     `json:"change_amount"`
	OpenedBy                    pgtype.UUID        `json:"opened_by"`
	CustomerSeatedAt            pgtype.Timestamptz `json:"customer_seated_at"`
	BillRequestedAt             pgtype.Timestamptz `json:"bill_requested_at"`
	PaidAt                      pgtype.Timestamptz `json:"paid_at"`
	ClosedAt                    pgtype.Timestamptz `json:"closed_at"`
	CreatedAt                   time.Time          `json:"created_at"`
	UpdatedAt                   time.Time          `json:"updated_at"`
}

type Party struct {
	ID         uuid.UUID `json:"id"`
	TabID      uuid.UUID `json:"tab_id"`
	PersonName string    `json:"person_name"`
	SeatedAt   time.Time `json:"seated_at"`
}

type Order struct {
	ID                    uuid.UUID          `json:"id"`
	TabID                 uuid.UUID          `json:"tab_id"`
	MenuItemID            uuid.UUID          `json:"menu_item_id"`
	Quantity              int32              `json:"quantity"`
	UnitPrice             pgtype.Numeric     `json:"unit_price"`
	LineTotal             pgtype.Numeric     `json:"line_total"`
	Status                string             `json:"status"`
	Notes                 pgtype.Text        `json:"notes"`
	ServiceChargeIncluded bool               `json:"service_charge_included"`
	SentToKitchenAt       time.Time          `json:"sent_to_kitchen_at"`
	StartedPreparingAt    pgtype.Timestamptz `json:"started_preparing_at"`
	ReadyAt               pgtype.Timestamptz `json:"ready_at"`
	DeliveredAt           pgtype.Timestamptz `json:"delivered_at"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
	Seq                   int64              `json:"seq"` // insert order; breaks created_at ties
}

type CancellationRequest struct {
	ID          uuid.UUID          `json:"id"`
	TabID       uuid.UUID          `json:"tab_id"`
	Category    string             `json:"category"`
	Reason      pgtype.Text        `json:"reason"`
	RequestedBy uuid.UUID          `json:"requested_by"`
	Status      string             `json:"status"`
	ApprovedBy  pgtype.UUID        `json:"approved_by"`
	ResolvedAt  pgtype.Timestamptz `json:"resolved_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

type ReturnRequest struct {
	ID          uuid.UUID          `json:"id"`
	OrderID     uuid.UUID          `json:"order_id"`
	Category    string             `json:"category"`
	Subcategory string             `json:"subcategory"`
	Description pgtype.Text        `json:"description"`
	SourceType  pgtype.Text        `json:"source_type"`
	SourceID    pgtype.UUID        `json:"source_id"`
	ImageKey    pgtype.Text        `json:"image_key"`
	RequestedBy uuid.UUID          `json:"requested_by"`
	Status      string             `json:"status"`
	ResolvedBy  pgtype.UUID        `json:"resolved_by"`
	ResolvedAt  pgtype.Timestamptz `json:"resolved_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

type AuditLog struct {
	ID          uuid.UUID   `json:"id"`
	EntityType  string      `json:"entity_type"`
	EntityID    uuid.UUID   `json:"entity_id"`
	Action      string      `json:"action"`
	ActorID     pgtype.UUID `json:"actor_id"`
	Description pgtype.Text `json:"description"`
	BeforeData  []byte      `json:"before_data"`
	AfterData   []byte      `json:"after_data"`
	CreatedAt   time.Time   `json:"created_at"`
}
