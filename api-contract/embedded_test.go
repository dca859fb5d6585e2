package apicontract_test

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apicontract "github.com/catalogops/price-sync/api-contract"
)

func TestEmbeddedSpecIsValidOpenAPI(t *testing.T) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(apicontract.GetSpecBytes())
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))

	assert.NotNil(t, doc.Paths.Find("/products"))
	assert.NotNil(t, doc.Paths.Find("/products/{code}"))
	assert.NotNil(t, doc.Paths.Find("/products/{code}/price"))
}
