package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/ir"
)

func bandContract(t *testing.T) *Contract {
	t.Helper()
	fs, err := mustLoad(t).Fields(Collection, []string{"bands"})
	require.NoError(t, err)
	c, err := NewContract("band", fs, "bands.")
	require.NoError(t, err)
	return c
}

func TestContractAcceptsItem(t *testing.T) {
	c := bandContract(t)
	band := ir.NewObject(
		ir.O("id", ir.Int(1)),
		ir.O("link", ir.String("/api/bands/1")),
		ir.O("name", ir.String("Gravel Saints")),
		ir.O("people", ir.Array{
			ir.NewObject(
				ir.O("id", ir.Int(4)),
				ir.O("activeDates", ir.Array{
					ir.NewObject(ir.O("id", ir.Int(9)), ir.O("from", ir.String("1994-03-01")), ir.O("until", ir.Null{})),
				}),
			),
		}),
	)
	assert.NoError(t, c.Validate(band))
}

func TestContractRejectsViolations(t *testing.T) {
	c := bandContract(t)

	err := c.Validate(ir.NewObject(ir.O("id", ir.String("one"))))
	require.Error(t, err)
	assert.True(t, apierr.IsServerError(err))

	err = c.Validate(ir.NewObject(ir.O("tempo", ir.Int(120))))
	assert.Error(t, err)

	err = c.Validate(ir.NewObject(ir.O("people", ir.Array{
		ir.NewObject(ir.O("activeDates", ir.Array{
			ir.NewObject(ir.O("from", ir.String("spring"))),
		})),
	})))
	assert.Error(t, err)
}

func TestContractDocumentShape(t *testing.T) {
	c := bandContract(t)
	props := c.Document()["properties"].(map[string]any)
	people := props["people"].(map[string]any)
	assert.Equal(t, "array", people["type"])
	items := people["items"].(map[string]any)
	assert.Contains(t, items["properties"], "roles")
	assert.NotContains(t, props, "bandsCount")
}
