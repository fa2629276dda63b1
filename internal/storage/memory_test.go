package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	require.NotNil(t, s)
	assert.NotNil(t, s.collections)
	assert.Empty(t, s.Collections())
}

func TestCreateCollection(t *testing.T) {
	s := NewMemoryStorage()

	require.NoError(t, s.CreateCollection("responses"))

	err := s.CreateCollection("responses")
	assert.ErrorIs(t, err, ErrCollectionExists)

	require.NoError(t, s.CreateCollection("audit"))
	assert.Equal(t, []string{"audit", "responses"}, s.Collections())
}

func TestInsert_UnknownCollection(t *testing.T) {
	s := NewMemoryStorage()

	_, err := s.Insert("nope", Record{"a": "b"})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = s.FindByField("nope", "a", "b")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = s.All("nope")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	assert.ErrorIs(t, s.Clear("nope"), ErrCollectionNotFound)
}

func TestInsert_AssignsMetadata(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateCollection("responses"))

	first, err := s.Insert("responses", Record{"keyValue": "42"})
	require.NoError(t, err)
	second, err := s.Insert("responses", Record{"keyValue": "42"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Less(t, first.Seq(), second.Seq())
}

func TestInsert_CopiesInput(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateCollection("responses"))

	rec := Record{"keyValue": "42"}
	_, err := s.Insert("responses", rec)
	require.NoError(t, err)

	rec["keyValue"] = "changed"
	assert.NotContains(t, rec, FieldID)

	found, err := s.FindByField("responses", "keyValue", "42")
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Mutating a returned record must not leak into the store
	found[0]["keyValue"] = "mutated"
	found, err = s.FindByField("responses", "keyValue", "42")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestFindByField(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateCollection("responses"))

	_, _ = s.Insert("responses", Record{"serviceName": "payments", "keyValue": "42", "selectedVariantId": "declined"})
	_, _ = s.Insert("responses", Record{"serviceName": "payments", "keyValue": "99", "selectedVariantId": "success"})
	_, _ = s.Insert("responses", Record{"serviceName": "orders", "keyValue": "42", "selectedVariantId": "error"})

	found, err := s.FindByField("responses", "keyValue", "42")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "declined", found[0]["selectedVariantId"])
	assert.Equal(t, "error", found[1]["selectedVariantId"])

	found, err = s.FindByField("responses", "keyValue", "7")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.FindByField("responses", "missingField", "42")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFindByField_TypeSensitive(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateCollection("responses"))

	_, _ = s.Insert("responses", Record{"keyValue": 42})

	found, err := s.FindByField("responses", "keyValue", "42")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.FindByField("responses", "keyValue", 42)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestAllAndClear(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateCollection("responses"))

	for i := 0; i < 3; i++ {
		_, err := s.Insert("responses", Record{"n": i})
		require.NoError(t, err)
	}

	all, err := s.All("responses")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0]["n"])
	assert.Equal(t, 2, all[2]["n"])

	require.NoError(t, s.Clear("responses"))
	all, err = s.All("responses")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentInsertAndFind(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateCollection("responses"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, err := s.Insert("responses", Record{"keyValue": fmt.Sprintf("k%d", n%5)})
			assert.NoError(t, err)
		}(i)
		go func(n int) {
			defer wg.Done()
			found, err := s.FindByField("responses", "keyValue", fmt.Sprintf("k%d", n%5))
			assert.NoError(t, err)
			// Snapshots are ordered by sequence
			for j := 1; j < len(found); j++ {
				assert.Less(t, found[j-1].Seq(), found[j].Seq())
			}
		}(i)
	}
	wg.Wait()

	all, err := s.All("responses")
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestClose(t *testing.T) {
	assert.NoError(t, NewMemoryStorage().Close())
}
