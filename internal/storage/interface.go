package storage

import "errors"

var (
	// ErrCollectionNotFound is returned when a collection was never created
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when a collection is created twice
	ErrCollectionExists = errors.New("collection already exists")
)

// Record metadata fields set by the store on insert
const (
	FieldID  = "_id"
	FieldSeq = "_seq"
)

// Record is one stored document
type Record map[string]interface{}

// ID returns the store-assigned record id
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Seq returns the store-assigned insertion sequence
func (r Record) Seq() uint64 {
	seq, _ := r[FieldSeq].(uint64)
	return seq
}

// Storage is a set of named record collections
type Storage interface {
	// Collection operations
	CreateCollection(name string) error
	Collections() []string
	Clear(collection string) error

	// Record operations
	Insert(collection string, rec Record) (Record, error)
	FindByField(collection, field string, value interface{}) ([]Record, error)
	All(collection string) ([]Record, error)

	// Utility
	Close() error
}
