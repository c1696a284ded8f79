package ai

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
)

// stubProvider returns a canned response without touching any network.
type stubProvider struct {
	response string
	err      error
}

func (s *stubProvider) ExtractData(prompt string, imageBase64 string) (string, error) {
	return s.response, s.err
}

func TestExtractParsesInvoice(t *testing.T) {
	response := "```json\n" + `{
		"proveedor": "Telefonica de Espana SAU",
		"nif_proveedor": "A-82018474",
		"fecha": "2025-03-15",
		"numero_factura": "TA6-2025-0042",
		"concepto": "cuota mensual fibra e internet",
		"base_imponible": 41.32,
		"tipo_iva": 21,
		"cuota_iva": 8.68,
		"total": 50.00,
		"tipo_documento": "factura"
	}` + "\n```"

	extractor := NewExtractor(&stubProvider{response: response})
	inv, duration, err := extractor.Extract("texto ocr", "")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.GreaterOrEqual(t, duration, 0.0)

	assert.Equal(t, "Telefonica de Espana SAU", inv.Proveedor)
	assert.Equal(t, "A82018474", inv.NIFProveedor) // dashes stripped
	assert.Equal(t, "2025-03-15", inv.Fecha.Format("2006-01-02"))
	assert.Equal(t, "TA6-2025-0042", inv.NumeroFactura)
	assert.Equal(t, 21, inv.TipoIVA)
	assert.True(t, inv.BaseImponible.Equal(decimal.NewFromFloat(41.32)))
	assert.True(t, inv.Total.Equal(decimal.NewFromFloat(50.00)))
	assert.Equal(t, "factura", inv.TipoDocumento)
	assert.Equal(t, "texto ocr", inv.RawText)
	assert.Greater(t, inv.Confidence, 0.9) // all fields present and consistent
}

func TestExtractSnapsIllegalRate(t *testing.T) {
	response := `{"proveedor": "X", "concepto": "y", "base_imponible": 100, "tipo_iva": 18, "cuota_iva": 18, "total": 118}`

	extractor := NewExtractor(&stubProvider{response: response})
	inv, _, err := extractor.Extract("t", "")
	require.NoError(t, err)
	assert.Equal(t, 21, inv.TipoIVA)
}

func TestExtractRejectsNonJSON(t *testing.T) {
	extractor := NewExtractor(&stubProvider{response: "lo siento, no puedo leer la imagen"})
	_, _, err := extractor.Extract("t", "")
	assert.Error(t, err)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"nil", nil, "0"},
		{"float", 42.5, "42.5"},
		{"int", 7, "7"},
		{"plain string", "1234.56", "1234.56"},
		{"spanish format", "3.965,34", "3965.34"},
		{"english thousands", "3,965.34", "3965.34"},
		{"comma decimal", "41,32", "41.32"},
		{"empty string", "", "0"},
		{"garbage string", "n/a", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := decimal.NewFromString(tt.want)
			require.NoError(t, err)
			assert.True(t, parseDecimal(tt.input).Equal(want),
				"got %s want %s", parseDecimal(tt.input), want)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2025-03-15", "15/03/2025", "15-03-2025", "2025/03/15"} {
		got := parseDate(s)
		assert.Equal(t, "2025-03-15", got.Format("2006-01-02"), "input %s", s)
	}
	assert.True(t, parseDate("").IsZero())
	assert.True(t, parseDate("anteayer").IsZero())
}

func TestCleanNIF(t *testing.T) {
	assert.Equal(t, "B12345678", cleanNIF("b-12.345.678"))
	assert.Equal(t, "12345678Z", cleanNIF(" 12345678-z "))
	assert.Equal(t, "", cleanNIF(""))
}

func TestNIFRegex(t *testing.T) {
	for _, valid := range []string{"12345678Z", "X1234567L", "B12345678", "A82018474"} {
		assert.True(t, nifRegex.MatchString(valid), valid)
	}
	for _, invalid := range []string{"", "1234", "I1234567X", "123456789", "B1234567"} {
		assert.False(t, nifRegex.MatchString(invalid), invalid)
	}
}

func TestCalculateConfidence(t *testing.T) {
	t.Run("empty extraction scores near zero", func(t *testing.T) {
		inv := &models.ExtractedInvoice{}
		assert.Less(t, calculateConfidence(inv), 0.1)
	})

	t.Run("inconsistent totals lose the bonus", func(t *testing.T) {
		consistent := &models.ExtractedInvoice{
			Proveedor:     "X",
			BaseImponible: decimal.NewFromInt(100),
			CuotaIVA:      decimal.NewFromInt(21),
			Total:         decimal.NewFromInt(121),
		}
		inconsistent := &models.ExtractedInvoice{
			Proveedor:     "X",
			BaseImponible: decimal.NewFromInt(100),
			CuotaIVA:      decimal.NewFromInt(21),
			Total:         decimal.NewFromInt(200),
		}
		assert.Greater(t, calculateConfidence(consistent), calculateConfidence(inconsistent))
	})
}

func TestDecodeDataURL(t *testing.T) {
	data, err := decodeDataURL("data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	// Bare base64 without a prefix still decodes.
	data, err = decodeDataURL("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = decodeDataURL("data:image/jpeg;base64,!!!")
	assert.Error(t, err)
}
