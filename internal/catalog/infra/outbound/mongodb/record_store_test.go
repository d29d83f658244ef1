package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	catalogDomain "github.com/alkimyk/cmr/internal/catalog/domain"
	sharedDomain "github.com/alkimyk/cmr/shared/domain"
)

func TestCriteriaToFilter(t *testing.T) {
	res, _ := catalogDomain.ResourceByName("clients")
	criteria, err := catalogDomain.BuildCriteria(res, catalogDomain.SearchQuery{
		Query:   "a.b",
		Filters: map[string]string{"activo": "si", "id": "c-1"},
	})
	require.NoError(t, err)

	filter, err := criteriaToFilter(res, criteria)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"activo": bson.M{"$eq": true}},
		bson.M{"_id": bson.M{"$eq": "c-1"}},
		bson.M{"$or": bson.A{
			bson.M{"nombre": bson.M{"$regex": `a\.b`, "$options": "i"}},
			bson.M{"cuit": bson.M{"$regex": `a\.b`, "$options": "i"}},
			bson.M{"email": bson.M{"$regex": `a\.b`, "$options": "i"}},
		}},
	}}, filter)
}

func TestCriteriaToFilter_EmptyAndInvalid(t *testing.T) {
	res, _ := catalogDomain.ResourceByName("cheques")

	filter, err := criteriaToFilter(res, sharedDomain.And())
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, filter)

	_, err = criteriaToFilter(res, catalogDomain.FieldEquals{Field: "$where", Value: "1"})
	assert.Error(t, err)
}

func TestDocumentMapping(t *testing.T) {
	res, _ := catalogDomain.ResourceByName("uoms")

	doc := toDocument(catalogDomain.Record{"id": "u-1", "codigo": "kg", "factor": 1.0})
	assert.Equal(t, bson.M{"_id": "u-1", "codigo": "kg", "factor": 1.0}, doc)

	// Documentos cargados a mano pueden traer enteros o faltar campos
	rec := fromDocument(res, bson.M{"_id": "u-2", "codigo": "lt", "factor": int32(1000)})
	assert.Equal(t, catalogDomain.Record{
		"id": "u-2", "codigo": "lt", "nombre": nil, "factor": 1000.0, "created_at": nil, "updated_at": nil,
	}, rec)
}
