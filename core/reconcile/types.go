package reconcile

import (
	"errors"

	"livesync/core/utils"
)

// ErrNotInitialized is the panic value raised when Apply is called before Initialize.
// It signals a host bug, not a data anomaly.
var ErrNotInitialized = errors.New("reconcile: apply called before initialize")

// ID is the canonical text form of an entity's "id" field.
// JSON numbers and strings normalize to the same text, so 1 and "1" join.
type ID string

// IDField is the field every entity is keyed by.
const IDField = "id"

// Entity is a single record. Only the "id" field has meaning to the reconciler;
// every other field is opaque payload.
type Entity map[string]any

// ID returns the entity key. ok is false when the id is missing, null, empty,
// or not a scalar value.
func (e Entity) ID() (ID, bool) {
	if e == nil {
		return "", false
	}
	raw, exists := e[IDField]
	if !exists {
		return "", false
	}
	return ParseID(raw)
}

// ParseID normalizes a raw id value into an ID.
func ParseID(raw any) (ID, bool) {
	s, ok := utils.ScalarText(raw)
	if !ok {
		return "", false
	}
	return ID(s), true
}

// clone returns a shallow copy of the entity. Nested values are shared and must be
// treated as read-only.
func (e Entity) clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// merge returns a new entity with patch fields laid over e.
// The id of e is kept even if the patch carries a differently formatted one.
func (e Entity) merge(patch Entity) Entity {
	out := make(Entity, len(e)+len(patch))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range patch {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// Kind tags a ChangeNotification.
type Kind string

const (
	// KindCreate adds a new entity.
	KindCreate Kind = "CREATE"
	// KindUpdate merges fields into an existing entity.
	KindUpdate Kind = "UPDATE"
	// KindDelete removes an entity by id.
	KindDelete Kind = "DELETE"
	// KindBatch carries an ordered list of CREATE/UPDATE/DELETE notifications.
	KindBatch Kind = "BATCH"
)

// Known reports whether k is one of the four notification kinds.
func (k Kind) Known() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete, KindBatch:
		return true
	default:
		return false
	}
}

// Notification is one unit of incremental change delivered over the push channel.
// Entity is set for CREATE, UPDATE and DELETE (DELETE only needs the id);
// Batch is set for BATCH.
type Notification struct {
	Kind   Kind
	Entity Entity
	Batch  []Notification
}

// Create builds a CREATE notification.
func Create(e Entity) Notification {
	return Notification{Kind: KindCreate, Entity: e}
}

// Update builds an UPDATE notification carrying a full or partial entity.
func Update(e Entity) Notification {
	return Notification{Kind: KindUpdate, Entity: e}
}

// Delete builds a DELETE notification for the given raw id.
func Delete(id any) Notification {
	return Notification{Kind: KindDelete, Entity: Entity{IDField: id}}
}

// Batch builds a BATCH notification.
func Batch(items ...Notification) Notification {
	return Notification{Kind: KindBatch, Batch: items}
}

// Placement decides where newly created entities go in the collection.
type Placement string

const (
	// PlaceAppend adds new entities at the end (admin grid, transactions).
	PlaceAppend Placement = "append"
	// PlacePrepend adds new entities at the front (news feed).
	PlacePrepend Placement = "prepend"
)

// AnomalyType classifies non-fatal data problems.
type AnomalyType string

const (
	AnomalyDuplicateCreate AnomalyType = "duplicate_create"
	AnomalyUpdateMiss      AnomalyType = "update_miss"
	AnomalyUnknownKind     AnomalyType = "unknown_kind"
	AnomalyMalformed       AnomalyType = "malformed"
	AnomalyNestedBatch     AnomalyType = "nested_batch"
)

// Anomaly describes one data problem the reconciler resolved or skipped.
type Anomaly struct {
	Type   AnomalyType
	Kind   Kind
	ID     ID
	Detail string
}

// Recorder receives reconciliation events for observability.
// Implementations must not block; they are called from inside Apply.
type Recorder interface {
	Applied(feed string, kind Kind)
	Anomaly(feed string, a Anomaly)
}

// Recorders fans events out to several recorders.
type Recorders []Recorder

func (rs Recorders) Applied(feed string, kind Kind) {
	for _, r := range rs {
		if r != nil {
			r.Applied(feed, kind)
		}
	}
}

func (rs Recorders) Anomaly(feed string, a Anomaly) {
	for _, r := range rs {
		if r != nil {
			r.Anomaly(feed, a)
		}
	}
}

// Stats provides aggregate counts for a reconciler.
type Stats struct {
	// Initializes counts full snapshot loads, including resyncs.
	Initializes int `json:"initializes"`

	// Applied counts top-level notifications by kind. Unknown kinds are not counted here.
	Applied map[Kind]int `json:"applied"`

	// Anomalies counts anomalies by type.
	Anomalies map[AnomalyType]int `json:"anomalies"`
}

func (s Stats) clone() Stats {
	out := Stats{
		Initializes: s.Initializes,
		Applied:     make(map[Kind]int, len(s.Applied)),
		Anomalies:   make(map[AnomalyType]int, len(s.Anomalies)),
	}
	for k, v := range s.Applied {
		out.Applied[k] = v
	}
	for k, v := range s.Anomalies {
		out.Anomalies[k] = v
	}
	return out
}
