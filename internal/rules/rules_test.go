package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
)

func TestDefaultTableIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestTableLookups(t *testing.T) {
	table := Default()

	r, ok := table.Rate(10)
	require.True(t, ok)
	assert.Equal(t, 10, r.Rate)
	assert.NotEmpty(t, r.Article)

	_, ok = table.Rate(18)
	assert.False(t, ok)

	d, ok := table.Category(CategoryVehicle)
	require.True(t, ok)
	assert.Equal(t, 50, d.Pct)

	_, ok = table.Category("no_such_category")
	assert.False(t, ok)
}

func TestValidateRejectsBrokenTables(t *testing.T) {
	t.Run("missing rate tier", func(t *testing.T) {
		table := Default()
		var rates []RateRule
		for _, r := range table.Rates {
			if r.Rate != 4 {
				rates = append(rates, r)
			}
		}
		table.Rates = rates
		err := table.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing IVA tier 4%")
	})

	t.Run("rate without article", func(t *testing.T) {
		table := Default()
		table.Rates[0].Article = ""
		assert.Error(t, table.Validate())
	})

	t.Run("unknown rate tier", func(t *testing.T) {
		table := Default()
		table.Rates = append(table.Rates, RateRule{Rate: 18, Article: "x"})
		assert.Error(t, table.Validate())
	})

	t.Run("missing category", func(t *testing.T) {
		table := Default()
		table.Deduct = table.Deduct[:2]
		assert.Error(t, table.Validate())
	})

	t.Run("invalid percentage", func(t *testing.T) {
		table := Default()
		for i := range table.Deduct {
			if table.Deduct[i].Category == CategoryVehicle {
				table.Deduct[i].Pct = 65
			}
		}
		assert.Error(t, table.Validate())
	})

	t.Run("unknown condition", func(t *testing.T) {
		table := Default()
		for i := range table.Deduct {
			if table.Deduct[i].Category == CategoryHome {
				table.Deduct[i].Condition = "phase_of_the_moon"
			}
		}
		assert.Error(t, table.Validate())
	})

	t.Run("home category without condition", func(t *testing.T) {
		table := Default()
		for i := range table.Deduct {
			if table.Deduct[i].Category == CategoryHome {
				table.Deduct[i].Condition = ""
			}
		}
		err := table.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "work-location condition")
	})
}

func TestConditionMet(t *testing.T) {
	rule := DeductRule{Condition: "works_from_home"}

	assert.False(t, rule.ConditionMet(nil))
	assert.True(t, rule.ConditionMet(&models.UserProfile{WorkLocation: models.LocationCasa}))
	assert.True(t, rule.ConditionMet(&models.UserProfile{WorkLocation: models.LocationMixto}))
	assert.False(t, rule.ConditionMet(&models.UserProfile{WorkLocation: models.LocationOficina}))

	unconditional := DeductRule{}
	assert.True(t, unconditional.ConditionMet(nil))
}

func TestLoad(t *testing.T) {
	t.Run("valid file round-trips", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data, err := yaml.Marshal(Default())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))

		table, err := Load(path)
		require.NoError(t, err)
		assert.Len(t, table.Rates, 4)
		assert.Len(t, table.Deduct, 4)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid table fails validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("iva_rates: []\ndeductibility_rules: []\n"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}
