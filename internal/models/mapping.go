package models

// ResponsesCollection holds the stateful variant mappings
const ResponsesCollection = "responses"

// Mapping record field names
const (
	FieldServiceName       = "serviceName"
	FieldKeyType           = "keyType"
	FieldKeyValue          = "keyValue"
	FieldSelectedVariantID = "selectedVariantId"
)

// Mapping associates a request identity with the variant it should receive
type Mapping struct {
	ID                string `json:"id,omitempty"`
	ServiceName       string `json:"serviceName" binding:"required"`
	KeyType           string `json:"keyType" binding:"required"`
	KeyValue          string `json:"keyValue" binding:"required"`
	SelectedVariantID string `json:"selectedVariantId" binding:"required"`
	Seq               uint64 `json:"seq,omitempty"`
}

// Record converts the mapping into a store record
func (m *Mapping) Record() map[string]interface{} {
	return map[string]interface{}{
		FieldServiceName:       m.ServiceName,
		FieldKeyType:           m.KeyType,
		FieldKeyValue:          m.KeyValue,
		FieldSelectedVariantID: m.SelectedVariantID,
	}
}

// MappingFromRecord reads a mapping back out of a store record.
// Record metadata is passed in separately since the store owns it.
func MappingFromRecord(rec map[string]interface{}, id string, seq uint64) *Mapping {
	str := func(k string) string {
		s, _ := rec[k].(string)
		return s
	}
	return &Mapping{
		ID:                id,
		ServiceName:       str(FieldServiceName),
		KeyType:           str(FieldKeyType),
		KeyValue:          str(FieldKeyValue),
		SelectedVariantID: str(FieldSelectedVariantID),
		Seq:               seq,
	}
}
